package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/kegliz/qplay/qc/simulator"
	"github.com/spf13/cobra"

	_ "github.com/kegliz/qplay/qc/simulator/ddsim"
)

var (
	runCircuitFile string
	runShots       int
	runBackend     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "play a circuit against the decision-diagram engine and print the measurement histogram",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runCircuitFile, "circuit", "", "path to a circuit JSON file (required)")
	runCmd.Flags().IntVar(&runShots, "shots", 1024, "number of shots")
	runCmd.Flags().StringVar(&runBackend, "backend", "ddsim", "simulator.RunnerFactory name")
	_ = runCmd.MarkFlagRequired("circuit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	circ, err := loadCircuit(runCircuitFile)
	if err != nil {
		return err
	}

	runner, err := simulator.CreateRunner(runBackend)
	if err != nil {
		return fmt.Errorf("backend %q unavailable: %w", runBackend, err)
	}
	if cfgRunner, ok := runner.(interface {
		Configure(map[string]interface{}) error
	}); ok {
		_ = cfgRunner.Configure(map[string]interface{}{"workers": cfg.Workers})
	}

	sim := simulator.NewSimulator(simulator.SimulatorOptions{Shots: runShots, Runner: runner})

	start := time.Now()
	hist, err := sim.RunSerial(circ)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("running circuit: %w", err)
	}

	log.Info().Dur("elapsed", elapsed).Int("shots", runShots).Msg("run complete")
	pretty(hist, runShots)
	return nil
}

// pretty prints a measurement histogram sorted by bit-string, the same
// format cmd/cli/main.go uses for its own shot histograms.
func pretty(hist map[string]int, shots int) {
	keys := make([]string, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, state := range keys {
		count := hist[state]
		probability := float64(count) / float64(shots)
		fmt.Printf("State |%s>: %d counts (%.2f%%)\n", state, count, probability*100)
	}
}
