package main

import "github.com/kegliz/qplay/cmd/ddctl/cmd"

func main() {
	cmd.Execute()
}
