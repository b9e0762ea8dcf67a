package cmd

import (
	"fmt"

	dd "github.com/kegliz/qplay/qc/dd"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "build an engine with the resolved configuration and print table/cache occupancy",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	eng := dd.New(cfg)
	st := eng.Stats()

	fmt.Printf("nodes:   live=%d capacity=%d fill=%.4f gc_count=%d\n",
		st.Nodes.Live, st.Nodes.Capacity, st.Nodes.Fill, st.Nodes.GCCount)
	fmt.Printf("weights: live=%d capacity=%d fill=%.4f backend=%s\n",
		st.Weights.Live, st.Weights.Capacity, st.Weights.Fill, st.Weights.Backend)
	fmt.Printf("cache:   hits=%d misses=%d\n", st.Cache.Hits, st.Cache.Misses)
	fmt.Printf("config:  workers=%d tolerance=%g weight_backend=%s norm_strategy=%s\n",
		cfg.Workers, cfg.Tolerance, cfg.WeightBackend, cfg.NormStrategy)
	return nil
}
