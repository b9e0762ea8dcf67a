package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kegliz/qplay/qc/builder"
	"github.com/kegliz/qplay/qc/circuit"
)

// circuitFile is the on-disk JSON shape accepted by run/dump, the same
// {circuit:{qubits,gates:[{type,qubits,step}]}} body internal/ddserver's
// /dd/run route binds from a request, so a file dumped from one HTTP
// caller replays identically through the CLI.
type circuitFile struct {
	Circuit struct {
		Qubits int `json:"qubits"`
		Gates  []struct {
			Type   string `json:"type"`
			Qubits []int  `json:"qubits"`
			Step   int    `json:"step"`
		} `json:"gates"`
	} `json:"circuit"`
}

// loadCircuit reads a circuitFile from path and builds a circuit.Circuit,
// auto-measuring every qubit at the end when the file has no MEASURE gate
// of its own.
func loadCircuit(path string) (circuit.Circuit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading circuit file: %w", err)
	}
	var cf circuitFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing circuit file: %w", err)
	}
	if cf.Circuit.Qubits <= 0 {
		return nil, fmt.Errorf("circuit file: qubits must be positive, got %d", cf.Circuit.Qubits)
	}

	b := builder.New(builder.Q(cf.Circuit.Qubits), builder.C(cf.Circuit.Qubits))

	type gateReq struct {
		Type   string
		Qubits []int
	}
	byStep := map[int][]gateReq{}
	maxStep := 0
	for _, g := range cf.Circuit.Gates {
		byStep[g.Step] = append(byStep[g.Step], gateReq{Type: g.Type, Qubits: g.Qubits})
		if g.Step > maxStep {
			maxStep = g.Step
		}
	}

	hasMeasure := false
	for step := 0; step <= maxStep; step++ {
		for _, g := range byStep[step] {
			if err := applyGate(b, g.Type, g.Qubits); err != nil {
				return nil, err
			}
			if g.Type == "MEASURE" {
				hasMeasure = true
			}
		}
	}
	if !hasMeasure {
		for i := 0; i < cf.Circuit.Qubits; i++ {
			b.Measure(i, i)
		}
	}
	return b.BuildCircuit()
}

// applyGate mirrors internal/ddserver's gate-name switch so the CLI and the
// HTTP surface accept the identical circuit wire format.
func applyGate(b builder.Builder, name string, qubits []int) error {
	one := func(op func(int) builder.Builder) error {
		if len(qubits) != 1 {
			return fmt.Errorf("%s gate requires exactly 1 qubit", name)
		}
		op(qubits[0])
		return nil
	}
	two := func(op func(int, int) builder.Builder) error {
		if len(qubits) != 2 {
			return fmt.Errorf("%s gate requires exactly 2 qubits", name)
		}
		op(qubits[0], qubits[1])
		return nil
	}
	three := func(op func(int, int, int) builder.Builder) error {
		if len(qubits) != 3 {
			return fmt.Errorf("%s gate requires exactly 3 qubits", name)
		}
		op(qubits[0], qubits[1], qubits[2])
		return nil
	}

	switch name {
	case "H":
		return one(b.H)
	case "X":
		return one(b.X)
	case "S":
		return one(b.S)
	case "CNOT":
		return two(b.CNOT)
	case "CZ":
		return two(b.CZ)
	case "SWAP":
		return two(b.SWAP)
	case "TOFFOLI":
		return three(b.Toffoli)
	case "FREDKIN":
		return three(b.Fredkin)
	case "MEASURE":
		return one(func(q int) builder.Builder { return b.Measure(q, q) })
	default:
		return fmt.Errorf("unsupported gate type: %s", name)
	}
}
