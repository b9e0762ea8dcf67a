// Package ddconfig holds the configuration surface shared by the DD engine
// and its CLI/driver: table sizes, tolerance, weight backend and edge
// normalization strategy, and worker count.
package ddconfig

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/kegliz/qplay/qc/dd/edge"
	"github.com/kegliz/qplay/qc/dd/weight"
)

// Config is the full set of tunables a driver can set before calling
// engine.Init. Zero-valued fields are filled in by WithDefaults.
type Config struct {
	// Workers bounds the fork/join scheduler's parallelism; 0 means NumCPU
	// (never fewer than 2).
	Workers int

	// WeightTableInitialSize/MaxSize bound the weight hash-cons table.
	WeightTableInitialSize int
	WeightTableMaxSize     int

	// NodeTableInitialSize/MaxSize bound the node hash-cons table.
	NodeTableInitialSize int
	NodeTableMaxSize     int

	// CacheSize is the operation cache's fixed slot count.
	CacheSize int

	// Tolerance is the epsilon under which two weights are fused; 0 means
	// unset and gets defaultTolerance, ToleranceExact selects exact
	// arithmetic (no fusing).
	Tolerance float64

	// WeightBackend selects the weight table's internal representation.
	WeightBackend weight.Backend

	// NormStrategy selects the edge-weight normalization rule make_edge
	// applies to every new node.
	NormStrategy edge.NormStrategy

	// AutoGC enables automatic garbage collection when the node table's
	// fill ratio crosses GCThreshold.
	AutoGC bool

	// GCThreshold is the node-table fill fraction (0,1] that triggers an
	// automatic GC cycle when AutoGC is set.
	GCThreshold float64
}

const (
	defaultWeightTableInitialSize = 1 << 10
	defaultWeightTableMaxSize     = 1 << 24
	defaultNodeTableInitialSize   = 1 << 10
	defaultNodeTableMaxSize       = 1 << 24
	defaultCacheSize              = 1 << 20
	defaultTolerance              = 1e-14
	defaultGCThreshold            = 0.9
)

// ToleranceExact is a sentinel Tolerance value meaning "the caller explicitly
// wants exact arithmetic, not the zero-value default". Config.Tolerance's
// zero value already means "unset, apply defaultTolerance", so a literal 0
// can't double as an explicit request for exact mode; WithDefaults maps this
// sentinel down to the real exact-mode value, 0, after the defaulting pass.
const ToleranceExact = -1

// WithDefaults returns a copy of c with every zero-valued field filled in.
func (c Config) WithDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
		if c.Workers < 2 {
			c.Workers = 2
		}
	}
	if c.WeightTableInitialSize <= 0 {
		c.WeightTableInitialSize = defaultWeightTableInitialSize
	}
	if c.WeightTableMaxSize <= 0 {
		c.WeightTableMaxSize = defaultWeightTableMaxSize
	}
	if c.NodeTableInitialSize <= 0 {
		c.NodeTableInitialSize = defaultNodeTableInitialSize
	}
	if c.NodeTableMaxSize <= 0 {
		c.NodeTableMaxSize = defaultNodeTableMaxSize
	}
	if c.CacheSize <= 0 {
		c.CacheSize = defaultCacheSize
	}
	if c.Tolerance == 0 {
		c.Tolerance = defaultTolerance
	} else if c.Tolerance == ToleranceExact {
		c.Tolerance = 0
	}
	if c.GCThreshold <= 0 {
		c.GCThreshold = defaultGCThreshold
	}
	return c
}

// ParseWeightBackend maps the §6.3 CLI/config flag values
// (hashmap|real-tuple-hashmap|real-tree) to a weight.Backend.
func ParseWeightBackend(s string) (weight.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hashmap":
		return weight.Hashmap, nil
	case "real-tuple-hashmap":
		return weight.RealTupleHashmap, nil
	case "real-tree":
		return weight.RealTree, nil
	default:
		return 0, fmt.Errorf("ddconfig: unknown weight-backend %q (want hashmap|real-tuple-hashmap|real-tree)", s)
	}
}

// ParseNormStrategy maps the §6.3 CLI/config flag values
// (low|largest|min|l2) to an edge.NormStrategy.
func ParseNormStrategy(s string) (edge.NormStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "low":
		return edge.Low, nil
	case "largest":
		return edge.Largest, nil
	case "min":
		return edge.Min, nil
	case "l2":
		return edge.L2, nil
	default:
		return 0, fmt.Errorf("ddconfig: unknown norm-strategy %q (want low|largest|min|l2)", s)
	}
}
