package cmd

import (
	"fmt"

	"github.com/kegliz/qplay/internal/ddserver"
	"github.com/spf13/cobra"
)

var (
	servePort      int
	serveLocalOnly bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the gin HTTP surface over the decision-diagram engine",
	Long: `serve starts internal/ddserver, exposing:

  GET  /health
  GET  /dd/stats
  POST /dd/run
  GET  /dd/runs/:id`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "HTTP listen port")
	serveCmd.Flags().BoolVar(&serveLocalOnly, "local-only", false, "bind to 127.0.0.1 instead of all interfaces")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	srv := ddserver.New(ddserver.Options{Logger: log})
	log.Info().Int("port", servePort).Bool("local_only", serveLocalOnly).Msg("ddctl serve starting")
	if err := srv.Listen(servePort, serveLocalOnly); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
