// Package cmd is the cobra+viper CLI front-end for the decision-diagram
// engine, binding the §6.3 configuration surface (table sizes, cache size,
// tolerance, weight backend, normalization strategy, worker count) onto
// persistent flags, following junjiewwang-perf-analysis's
// cmd/cli/cmd/root.go rootCmd+PersistentFlags+Execute shape.
package cmd

import (
	"fmt"
	"os"

	"github.com/kegliz/qplay/internal/logger"
	"github.com/kegliz/qplay/qc/dd/ddconfig"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	log     *logger.Logger

	flagWorkers         int
	flagTableSizeMin    int
	flagTableSizeMax    int
	flagCacheSizeMin    int
	flagCacheSizeMax    int
	flagWeightTableSize int
	flagTolerance       float64
	flagExact           bool
	flagWeightBackend   string
	flagNormStrategy    string
	flagVerbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "ddctl",
	Short: "ddctl drives the decision-diagram quantum circuit engine",
	Long: `ddctl is a CLI front-end for qc/dd, the algebraic/edge-valued
decision-diagram engine: it builds a circuit, plays it against the engine,
and can report table/cache statistics or dump the resulting node table in
the reserved node-stream format.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logger.NewLogger(logger.LoggerOptions{Debug: flagVerbose})
	},
}

// Execute runs the root command; main calls this and nothing else.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ddctl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "fork/join scheduler worker count (0 = NumCPU, never fewer than 2)")
	rootCmd.PersistentFlags().IntVar(&flagTableSizeMin, "tablesize-min", 0, "node table initial size (power of two)")
	rootCmd.PersistentFlags().IntVar(&flagTableSizeMax, "tablesize-max", 0, "node table max size (power of two)")
	rootCmd.PersistentFlags().IntVar(&flagCacheSizeMin, "cachesize-min", 0, "operation cache slot count, used only when --cachesize-max is unset (the cache does not grow)")
	rootCmd.PersistentFlags().IntVar(&flagCacheSizeMax, "cachesize-max", 0, "operation cache slot count (fixed size)")
	rootCmd.PersistentFlags().IntVar(&flagWeightTableSize, "weight-table-size", 0, "weight table size (power of two)")
	rootCmd.PersistentFlags().Float64Var(&flagTolerance, "tolerance", 0, "weight-equality tolerance (default 1e-14 unless --exact)")
	rootCmd.PersistentFlags().BoolVar(&flagExact, "exact", false, "use exact arithmetic (tolerance 0), overrides --tolerance")
	rootCmd.PersistentFlags().StringVar(&flagWeightBackend, "weight-backend", "hashmap", "hashmap|real-tuple-hashmap|real-tree")
	rootCmd.PersistentFlags().StringVar(&flagNormStrategy, "norm-strategy", "low", "low|largest|min|l2")

	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("tablesize-min", rootCmd.PersistentFlags().Lookup("tablesize-min"))
	_ = viper.BindPFlag("tablesize-max", rootCmd.PersistentFlags().Lookup("tablesize-max"))
	_ = viper.BindPFlag("cachesize-min", rootCmd.PersistentFlags().Lookup("cachesize-min"))
	_ = viper.BindPFlag("cachesize-max", rootCmd.PersistentFlags().Lookup("cachesize-max"))
	_ = viper.BindPFlag("weight-table-size", rootCmd.PersistentFlags().Lookup("weight-table-size"))
	_ = viper.BindPFlag("tolerance", rootCmd.PersistentFlags().Lookup("tolerance"))
	_ = viper.BindPFlag("exact", rootCmd.PersistentFlags().Lookup("exact"))
	_ = viper.BindPFlag("weight-backend", rootCmd.PersistentFlags().Lookup("weight-backend"))
	_ = viper.BindPFlag("norm-strategy", rootCmd.PersistentFlags().Lookup("norm-strategy"))

	viper.SetEnvPrefix("ddctl")
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ddctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	// A missing config file is not an error: every tunable already has a
	// flag default and ddconfig.Config.WithDefaults backstops the rest.
	_ = viper.ReadInConfig()
}

// buildConfig assembles a ddconfig.Config from whatever viper resolved
// across flags, env vars and an optional config file.
func buildConfig() (ddconfig.Config, error) {
	backend, err := ddconfig.ParseWeightBackend(viper.GetString("weight-backend"))
	if err != nil {
		return ddconfig.Config{}, err
	}
	strategy, err := ddconfig.ParseNormStrategy(viper.GetString("norm-strategy"))
	if err != nil {
		return ddconfig.Config{}, err
	}
	cfg := ddconfig.Config{
		Workers:                viper.GetInt("workers"),
		NodeTableInitialSize:   viper.GetInt("tablesize-min"),
		NodeTableMaxSize:       viper.GetInt("tablesize-max"),
		CacheSize:              viper.GetInt("cachesize-max"),
		WeightTableInitialSize: viper.GetInt("weight-table-size"),
		WeightTableMaxSize:     viper.GetInt("weight-table-size"),
		Tolerance:              viper.GetFloat64("tolerance"),
		WeightBackend:          backend,
		NormStrategy:           strategy,
	}
	if viper.GetBool("exact") {
		cfg.Tolerance = ddconfig.ToleranceExact
	}
	if viper.GetInt("cachesize-min") > 0 && cfg.CacheSize == 0 {
		cfg.CacheSize = viper.GetInt("cachesize-min")
	}
	return cfg.WithDefaults(), nil
}
