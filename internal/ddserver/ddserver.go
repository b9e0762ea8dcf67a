// Package ddserver is the gin HTTP surface over the decision-diagram
// engine: a stats endpoint for table/cache occupancy and a run endpoint
// that plays a JSON-described circuit through the ddsim backend, in the
// same shape internal/app's appServer exposed for the statevector
// backends.
package ddserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kegliz/qplay/internal/logger"
	"github.com/kegliz/qplay/internal/server/router"
	dd "github.com/kegliz/qplay/qc/dd"
	"github.com/kegliz/qplay/qc/builder"
	"github.com/kegliz/qplay/qc/circuit"
	"github.com/kegliz/qplay/qc/simulator"

	_ "github.com/kegliz/qplay/qc/simulator/ddsim"
)

// Server is the ddserver collaborator: a logger, a router, and a registry
// of completed-run summaries keyed by a uuid, mirroring
// internal/qservice/pstore.go's uuid-keyed in-memory store.
type Server struct {
	logger *logger.Logger
	router *router.Router
	runs   *runStore
}

// Options configures a new Server.
type Options struct {
	Logger   *logger.Logger
	BasePath string
}

// New builds a Server and registers its routes on a fresh router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger(logger.LoggerOptions{})
	}
	r := router.NewRouter(router.RouterOptions{
		Logger:   opts.Logger,
		BasePath: opts.BasePath,
	})
	s := &Server{
		logger: opts.Logger,
		router: r,
		runs:   newRunStore(),
	}
	r.SetRoutes(s.routes())
	return s
}

// Listen starts the HTTP server.
func (s *Server) Listen(port int, localOnly bool) error {
	s.logger.Info().Int("port", port).Msg("starting dd engine server")
	return s.router.Start(port, localOnly)
}

func (s *Server) routes() []*router.Route {
	return []*router.Route{
		{Name: "health", Method: http.MethodGet, Pattern: "/health", HandlerFunc: s.health},
		{Name: "dd.stats", Method: http.MethodGet, Pattern: "/dd/stats", HandlerFunc: s.stats},
		{Name: "dd.run", Method: http.MethodPost, Pattern: "/dd/run", HandlerFunc: s.run},
		{Name: "dd.runs.get", Method: http.MethodGet, Pattern: "/dd/runs/:id", HandlerFunc: s.getRun},
	}
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// CircuitRequest mirrors internal/app's CircuitRequest shape: a JSON
// description of qubits/gates plus the shot count to run.
type CircuitRequest struct {
	Circuit struct {
		Qubits int `json:"qubits"`
		Gates  []struct {
			Type   string `json:"type"`
			Qubits []int  `json:"qubits"`
			Step   int    `json:"step"`
		} `json:"gates"`
	} `json:"circuit"`
	Shots   int `json:"shots"`
	Workers int `json:"workers"`
}

// RunResponse is the result of one /dd/run call.
type RunResponse struct {
	RunID         string         `json:"run_id"`
	Measurements  map[string]int `json:"measurements"`
	Backend       string         `json:"backend"`
	Shots         int            `json:"shots"`
	ExecutionTime float64        `json:"execution_time_ms"`
}

// run builds a circuit.Circuit from the request, plays it `Shots` times
// through the ddsim backend, and records the summary under a fresh run ID.
func (s *Server) run(c *gin.Context) {
	var req CircuitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error().Err(err).Msg("dd.run: binding JSON failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Circuit.Qubits <= 0 || req.Circuit.Qubits > 24 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "qubits must be in [1, 24]"})
		return
	}
	if req.Shots <= 0 {
		req.Shots = 1
	}

	circ, err := buildCircuit(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to build circuit: " + err.Error()})
		return
	}

	runner, err := simulator.CreateRunner("ddsim")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ddsim backend unavailable: " + err.Error()})
		return
	}
	if req.Workers > 0 {
		if cfg, ok := runner.(configurable); ok {
			_ = cfg.Configure(map[string]interface{}{"workers": req.Workers})
		}
	}

	sim := simulator.NewSimulator(simulator.SimulatorOptions{Shots: req.Shots, Runner: runner})

	start := time.Now()
	results, err := sim.RunSerial(circ)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Error().Err(err).Msg("dd.run: execution failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "execution failed: " + err.Error()})
		return
	}

	id := uuid.New().String()
	resp := RunResponse{
		RunID:         id,
		Measurements:  results,
		Backend:       "ddsim",
		Shots:         req.Shots,
		ExecutionTime: float64(elapsed.Microseconds()) / 1000.0,
	}
	s.runs.put(id, resp)
	c.JSON(http.StatusOK, resp)
}

type configurable interface {
	Configure(map[string]interface{}) error
}

func (s *Server) getRun(c *gin.Context) {
	id := c.Param("id")
	resp, ok := s.runs.get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found: " + id})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StatsResponse mirrors qc/dd.Engine.Stats, flattened for JSON.
type StatsResponse struct {
	NodesLive     int     `json:"nodes_live"`
	NodesCap      int     `json:"nodes_capacity"`
	NodesGC       int     `json:"nodes_gc_count"`
	NodesFill     float64 `json:"nodes_fill"`
	WeightsLive   int     `json:"weights_live"`
	WeightsCap    int     `json:"weights_capacity"`
	WeightsFill   float64 `json:"weights_fill"`
	WeightBackend string  `json:"weight_backend"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
}

// stats reports the process-wide default DD engine's table/cache
// occupancy. dd.Default() lazily installs a default-config engine on its
// first call, so this is never nil. The ddsim runner builds its own engine
// for each run, so its runs do not show up here.
func (s *Server) stats(c *gin.Context) {
	st := dd.Default().Stats()
	c.JSON(http.StatusOK, StatsResponse{
		NodesLive:     st.Nodes.Live,
		NodesCap:      st.Nodes.Capacity,
		NodesGC:       st.Nodes.GCCount,
		NodesFill:     st.Nodes.Fill,
		WeightsLive:   st.Weights.Live,
		WeightsCap:    st.Weights.Capacity,
		WeightsFill:   st.Weights.Fill,
		WeightBackend: st.Weights.Backend.String(),
		CacheHits:     st.Cache.Hits,
		CacheMisses:   st.Cache.Misses,
	})
}

// buildCircuit converts the JSON request into a circuit.Circuit, reusing
// the same gate-name switch internal/app/handlers.go used for the
// statevector backends so both HTTP surfaces accept the identical wire
// format.
func buildCircuit(req *CircuitRequest) (circuit.Circuit, error) {
	b := builder.New(builder.Q(req.Circuit.Qubits), builder.C(req.Circuit.Qubits))

	type gateReq struct {
		Type   string
		Qubits []int
	}
	byStep := map[int][]gateReq{}
	maxStep := 0
	for _, g := range req.Circuit.Gates {
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
		for i := 0; i < req.Circuit.Qubits; i++ {
			b.Measure(i, i)
		}
	}
	return b.BuildCircuit()
}

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
