// Package dd wires the weight table, node table, operation cache, scheduler,
// edge algebra, constructors and measurement into the single collaborator
// surface a driver talks to (§6.1): Init/Quit, the gate/state constructors,
// the five recursive operations, measurement, and GC coordination
// (protect/unprotect, auto-GC, manual GC).
package dd

import (
	"sync"

	"github.com/kegliz/qplay/internal/logger"
	"github.com/kegliz/qplay/qc/dd/cache"
	"github.com/kegliz/qplay/qc/dd/construct"
	"github.com/kegliz/qplay/qc/dd/ddconfig"
	"github.com/kegliz/qplay/qc/dd/edge"
	"github.com/kegliz/qplay/qc/dd/measure"
	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/ops"
	"github.com/kegliz/qplay/qc/dd/sched"
	"github.com/kegliz/qplay/qc/dd/weight"
)

// Engine is a process-local decision-diagram instance: its own weight
// table, node table, cache and scheduler, so tests can run isolated
// instances side by side with the package-level default one.
type Engine struct {
	cfg ddconfig.Config
	log *logger.Logger

	Weights *weight.Table
	Nodes   *node.Table
	Cache   *cache.Cache
	Pool    *sched.Pool
	Maker   edge.Maker
	Ops     *ops.Ops
	Builder construct.Builder
	Measure measure.Measurer

	mu          sync.Mutex
	protected   map[edge.Edge]int
	autoGC      bool
	gcThreshold float64
}

// New builds an isolated Engine; never touches the package-level default.
func New(cfg ddconfig.Config) *Engine {
	cfg = cfg.WithDefaults()
	e := &Engine{cfg: cfg, log: logger.NewLogger(logger.LoggerOptions{}), protected: make(map[edge.Edge]int)}
	e.rebuildFrom(weight.New(weight.Config{
		Tolerance:   cfg.Tolerance,
		InitialSize: cfg.WeightTableInitialSize,
		MaxSize:     cfg.WeightTableMaxSize,
		Backend:     cfg.WeightBackend,
	}), node.New(node.Config{
		InitialSize: cfg.NodeTableInitialSize,
		MaxSize:     cfg.NodeTableMaxSize,
	}))
	e.autoGC = cfg.AutoGC
	e.gcThreshold = cfg.GCThreshold
	return e
}

// rebuildFrom (re)installs the weight/node tables and every struct derived
// from them. Used both by New and by GC after a weight-table compaction.
func (e *Engine) rebuildFrom(wt *weight.Table, nt *node.Table) {
	e.Weights = wt
	e.Nodes = nt
	if e.Cache == nil {
		e.Cache = cache.New(e.cfg.CacheSize)
	}
	if e.Pool == nil {
		e.Pool = sched.New(sched.PoolConfig{MaxParallelism: e.cfg.Workers})
	}
	e.Maker = edge.New(wt, nt, e.cfg.NormStrategy)
	e.Ops = ops.New(wt, nt, e.Cache, e.Pool, e.Maker)
	e.Builder = construct.New(wt, e.Maker)
	e.Measure = measure.New(e.Ops, e.Maker)
}

var (
	defaultMu     sync.Mutex
	defaultEngine *Engine
)

// Init installs the process-wide default Engine, replacing any previous
// one. Idempotent: calling it again just re-initializes with the new
// config, matching the collaborator contract's "idempotent per process".
func Init(cfg ddconfig.Config) *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultEngine = New(cfg)
	return defaultEngine
}

// Default returns the process-wide Engine, lazily Init-ing it with default
// configuration if no driver has called Init yet.
func Default() *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		defaultEngine = New(ddconfig.Config{})
	}
	return defaultEngine
}

// Quit tears the process-wide default Engine down.
func Quit() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultEngine = nil
}

// Protect adds a reference-counted GC root: e will not be collected until
// a matching Unprotect call drops its count to zero.
func (e *Engine) Protect(ed edge.Edge) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.protected[ed]++
}

// Unprotect removes one reference previously added by Protect.
func (e *Engine) Unprotect(ed edge.Edge) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n, ok := e.protected[ed]; ok {
		if n <= 1 {
			delete(e.protected, ed)
		} else {
			e.protected[ed] = n - 1
		}
	}
}

// SetAutoGC enables or disables automatic GC after a top-level operation
// pushes the node table's fill ratio past the configured threshold.
func (e *Engine) SetAutoGC(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoGC = enabled
}

// SetGCThreshold sets the node-table fill fraction that triggers an
// automatic GC cycle when auto-GC is enabled.
func (e *Engine) SetGCThreshold(fraction float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gcThreshold = fraction
}

// GC runs one mark-sweep-compact cycle: it blocks (via the scheduler's GC
// gate) until every in-flight top-level operation finishes, marks every
// protected edge's target, sweeps the node table, then rebuilds the weight
// table keeping only handles still reachable from a surviving node, and
// clears the operation cache (stale entries would reference freed nodes).
func (e *Engine) GC() {
	e.Pool.GC(func() {
		e.mu.Lock()
		roots := make([]node.Handle, 0, len(e.protected))
		for ed := range e.protected {
			roots = append(roots, ed.Target)
		}
		e.mu.Unlock()

		for _, h := range roots {
			e.Nodes.Mark(h)
		}
		e.Nodes.Sweep()

		fresh := weight.New(weight.Config{
			Tolerance:   e.cfg.Tolerance,
			InitialSize: e.cfg.WeightTableInitialSize,
			MaxSize:     e.cfg.WeightTableMaxSize,
			Backend:     e.cfg.WeightBackend,
		})
		old := e.Weights
		for h := node.Handle(1); int(h) < e.Nodes.Size(); h++ {
			k, ok := e.Nodes.Get(h)
			if !ok {
				continue
			}
			lowW, err := fresh.Reachable(old, k.LowW)
			if err != nil {
				continue
			}
			highW, err := fresh.Reachable(old, k.HighW)
			if err != nil {
				continue
			}
			_ = e.Nodes.RewriteWeights(h, lowW, highW)
		}
		e.rebuildFrom(fresh, e.Nodes)
		e.Cache.Clear()
		e.log.Debug().Int("live_nodes", e.Nodes.Len()).Msg("dd: gc cycle complete")
	})
}

func (e *Engine) maybeAutoGC() {
	e.mu.Lock()
	enabled, threshold := e.autoGC, e.gcThreshold
	e.mu.Unlock()
	if enabled && e.Nodes.Fill() >= threshold {
		e.GC()
	}
}

// run executes fn as a protected top-level operation: it holds the
// scheduler's GC gate open for fn's whole recursion tree, then (outside the
// gate) checks whether auto-GC should fire.
func (e *Engine) run(fn func() (edge.Edge, error)) (edge.Edge, error) {
	release := e.Pool.Enter()
	result, err := fn()
	release()
	if err == nil {
		e.maybeAutoGC()
	}
	return result, err
}

// BasisState builds the n-qubit computational basis state |bits⟩.
func (e *Engine) BasisState(bits []bool) (edge.Edge, error) {
	return e.run(func() (edge.Edge, error) { return e.Builder.BasisState(bits) })
}

// Plus computes a + b.
func (e *Engine) Plus(a, b edge.Edge) (edge.Edge, error) {
	return e.run(func() (edge.Edge, error) { return e.Ops.Plus(a, b) })
}

// MatVec computes M * v over an n-qubit space.
func (e *Engine) MatVec(m, v edge.Edge, n uint32) (edge.Edge, error) {
	return e.run(func() (edge.Edge, error) { return e.Ops.MatVec(m, v, 0, n) })
}

// MatMat computes A * B over an n-qubit space.
func (e *Engine) MatMat(a, b edge.Edge, n uint32) (edge.Edge, error) {
	return e.run(func() (edge.Edge, error) { return e.Ops.MatMat(a, b, 0, n) })
}

// Inner computes ⟨a|b⟩.
func (e *Engine) Inner(a, b edge.Edge) (weight.Handle, error) {
	release := e.Pool.Enter()
	defer release()
	return e.Ops.Inner(a, b)
}

// Tensor computes a ⊗ b, with a spanning qubits 0..nA-1.
func (e *Engine) Tensor(a, b edge.Edge, nA uint32) (edge.Edge, error) {
	return e.run(func() (edge.Edge, error) { return e.Ops.Tensor(a, b, nA) })
}

// MeasureQubit measures qubit k of an n-qubit state.
func (e *Engine) MeasureQubit(state edge.Edge, k, n uint32, rng measure.RNG) (bool, edge.Edge, error) {
	release := e.Pool.Enter()
	bit, post, err := e.Measure.MeasureQubit(state, k, n, rng)
	release()
	if err == nil {
		e.maybeAutoGC()
	}
	return bit, post, err
}

// MeasureAll measures every qubit of an n-qubit state, in order.
func (e *Engine) MeasureAll(state edge.Edge, n uint32, rng measure.RNG) ([]bool, edge.Edge, error) {
	release := e.Pool.Enter()
	bits, post, err := e.Measure.MeasureAll(state, n, rng)
	release()
	if err == nil {
		e.maybeAutoGC()
	}
	return bits, post, err
}

// Stats reports node-table, weight-table and operation-cache occupancy and
// GC counters, the point-in-time snapshot both internal/ddserver's
// /dd/stats route and cmd/ddctl's stats subcommand surface to a caller.
type Stats struct {
	Nodes   node.Stats
	Weights weight.Stats
	Cache   cache.Stats
}

func (e *Engine) Stats() Stats {
	return Stats{
		Nodes:   e.Nodes.Stats(),
		Weights: e.Weights.Stats(),
		Cache:   e.Cache.Stats(),
	}
}

// GetAmplitude returns the amplitude of basis state bits within ed.
func (e *Engine) GetAmplitude(ed edge.Edge, bits []bool) (complex128, error) {
	release := e.Pool.Enter()
	defer release()
	cur := ed
	for k, bit := range bits {
		lo, hi, err := e.Ops.Cofactor(cur, uint32(k))
		if err != nil {
			return 0, err
		}
		if bit {
			cur = hi
		} else {
			cur = lo
		}
	}
	return e.Weights.Value(cur.Weight), nil
}
