package cmd

import (
	"fmt"
	"os"

	dd "github.com/kegliz/qplay/qc/dd"
	"github.com/kegliz/qplay/qc/dd/construct"
	"github.com/kegliz/qplay/qc/dd/edge"
	"github.com/kegliz/qplay/qc/dd/wire"
	"github.com/kegliz/qplay/qc/gate"
	"github.com/spf13/cobra"
)

var (
	dumpCircuitFile string
	dumpOutFile     string
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "play a circuit and write the resulting node table in the reserved node-stream format",
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpCircuitFile, "circuit", "", "path to a circuit JSON file (required)")
	dumpCmd.Flags().StringVar(&dumpOutFile, "out", "", "output node-stream file (required)")
	_ = dumpCmd.MarkFlagRequired("circuit")
	_ = dumpCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	circ, err := loadCircuit(dumpCircuitFile)
	if err != nil {
		return err
	}

	eng := dd.New(cfg)
	reg := gate.NewRegistry()
	n := uint32(circ.Qubits())

	state, err := eng.BasisState(make([]bool, n))
	if err != nil {
		return fmt.Errorf("building initial state: %w", err)
	}
	eng.Protect(state)
	defer eng.Unprotect(state)

	for i, op := range circ.Operations() {
		if op.G.Name() == "MEASURE" {
			continue
		}
		next, err := applyDumpGate(eng, reg, n, state, op.G.Name(), op.Qubits)
		if err != nil {
			return fmt.Errorf("applying gate %s (op %d): %w", op.G.Name(), i, err)
		}
		eng.Unprotect(state)
		state = next
		eng.Protect(state)
	}

	out, err := os.Create(dumpOutFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	weights := wire.FromWeightTable(eng.Weights)
	records := wire.FromTable(eng.Nodes)
	if err := wire.Encode(out, weights, records); err != nil {
		return fmt.Errorf("writing node stream: %w", err)
	}

	log.Info().Int("weights", len(weights)).Int("records", len(records)).Str("out", dumpOutFile).Msg("dump complete")
	return nil
}

// applyDumpGate plays a single gate's matrix against state, the same
// single-qubit-stack/multi-controlled-gate dispatch ddsim's runOnce uses,
// reduced to the gate set a static circuit dump needs (no measurement).
func applyDumpGate(eng *dd.Engine, reg *gate.Registry, n uint32, state edge.Edge, name string, qubits []int) (edge.Edge, error) {
	switch name {
	case "H", "X", "Y", "Z", "S":
		return applySingle(eng, reg, n, state, qubits[0], gateByName(name))
	case "CNOT":
		return applyControlled(eng, reg, n, state, []int{qubits[0]}, qubits[1], gate.X())
	case "CZ":
		return applyControlled(eng, reg, n, state, []int{qubits[0]}, qubits[1], gate.Z())
	case "TOFFOLI":
		return applyControlled(eng, reg, n, state, []int{qubits[0], qubits[1]}, qubits[2], gate.X())
	case "SWAP":
		a, b := qubits[0], qubits[1]
		var err error
		state, err = applyControlled(eng, reg, n, state, []int{a}, b, gate.X())
		if err != nil {
			return edge.Edge{}, err
		}
		state, err = applyControlled(eng, reg, n, state, []int{b}, a, gate.X())
		if err != nil {
			return edge.Edge{}, err
		}
		return applyControlled(eng, reg, n, state, []int{a}, b, gate.X())
	case "FREDKIN":
		ctrl, a, b := qubits[0], qubits[1], qubits[2]
		var err error
		state, err = applyControlled(eng, reg, n, state, []int{b}, a, gate.X())
		if err != nil {
			return edge.Edge{}, err
		}
		state, err = applyControlled(eng, reg, n, state, []int{ctrl, a}, b, gate.X())
		if err != nil {
			return edge.Edge{}, err
		}
		return applyControlled(eng, reg, n, state, []int{b}, a, gate.X())
	default:
		return edge.Edge{}, fmt.Errorf("unsupported gate %s", name)
	}
}

func gateByName(name string) gate.Gate {
	switch name {
	case "H":
		return gate.H()
	case "X":
		return gate.X()
	case "Y":
		return gate.Y()
	case "Z":
		return gate.Z()
	case "S":
		return gate.S()
	default:
		return nil
	}
}

func applySingle(eng *dd.Engine, reg *gate.Registry, n uint32, state edge.Edge, target int, g gate.Gate) (edge.Edge, error) {
	id, ok := reg.IDFor(g)
	if !ok {
		return edge.Edge{}, fmt.Errorf("no registry entry for gate %s", g.Name())
	}
	block, ok := reg.Matrix2x2(id)
	if !ok {
		return edge.Edge{}, fmt.Errorf("gate %s is not a single-qubit gate", g.Name())
	}
	mat, err := eng.Builder.SingleQubitGateStack(n, uint32(target), construct.Block2x2(block))
	if err != nil {
		return edge.Edge{}, err
	}
	return eng.MatVec(mat, state, n)
}

func applyControlled(eng *dd.Engine, reg *gate.Registry, n uint32, state edge.Edge, controls []int, target int, g gate.Gate) (edge.Edge, error) {
	id, ok := reg.IDFor(g)
	if !ok {
		return edge.Edge{}, fmt.Errorf("no registry entry for gate %s", g.Name())
	}
	block, ok := reg.Matrix2x2(id)
	if !ok {
		return edge.Edge{}, fmt.Errorf("gate %s is not a single-qubit gate", g.Name())
	}

	specs := make([]construct.ControlSpec, n)
	for i := range specs {
		specs[i] = construct.Ignore
	}
	for _, c := range controls {
		specs[c] = construct.ControlOnOne
	}

	mat, err := eng.Builder.MultiControlledGate(eng.Ops, n, uint32(target), specs, construct.Block2x2(block))
	if err != nil {
		return edge.Edge{}, err
	}
	return eng.MatVec(mat, state, n)
}
