// Package monitoring turns a running simulation into an HTTP server so that
// it can be observed and paused from outside, and exports Prometheus
// metrics.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/netsim/network/netstack"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/id"
	"github.com/sarchlab/netsim/sim/timing"
)

// Engine is the part of the engine the monitor controls.
type Engine interface {
	timing.TimeTeller

	State() timing.EngineState
	Pause()
	Continue()
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine     Engine
	graph      *topology.Graph
	network    *netstack.Network
	gatherer   prometheus.Gatherer
	portNumber int
	logger     *slog.Logger
	ids        id.Generator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		logger:   slog.Default(),
		ids:      id.NewGenerator(),
		gatherer: prometheus.DefaultGatherer,
	}
}

// WithPortNumber sets the port number of the monitor. Zero or privileged
// ports select a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("monitor port not allowed, using a random port",
			"port", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger *slog.Logger) *Monitor {
	m.logger = logger
	return m
}

// WithGatherer sets where /metrics reads from.
func (m *Monitor) WithGatherer(g prometheus.Gatherer) *Monitor {
	m.gatherer = g
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e Engine) {
	m.engine = e
}

// RegisterNetwork registers the nodes and stacks to expose.
func (m *Monitor) RegisterNetwork(g *topology.Graph, n *netstack.Network) {
	m.graph = g
	m.network = n
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.ids.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/api/continue", m.continueEngine).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/nodes", m.listNodes)
	r.HandleFunc("/api/node/{id:[0-9]+}", m.nodeDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))

	return r
}

// StartServer starts serving in the background and returns the URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitoring: listening: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.logger.Info("monitoring simulation", "url", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor server stopped", "err", err)
		}
	}()

	return url, nil
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now   float64 `json:"now"`
	State string  `json:"state"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, nowRsp{
		Now:   m.engine.Now(),
		State: m.engine.State().String(),
	})
}

type nodeRsp struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Addresses []string `json:"addresses"`
}

func (m *Monitor) listNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := []nodeRsp{}
	if m.graph != nil {
		for _, n := range m.graph.Nodes() {
			nodes = append(nodes, nodeRspOf(n))
		}
	}

	m.writeJSON(w, nodes)
}

func nodeRspOf(n *topology.Node) nodeRsp {
	pos := n.Position()
	rsp := nodeRsp{
		ID:        int(n.ID()),
		Name:      n.Name(),
		X:         pos.X,
		Y:         pos.Y,
		Addresses: []string{},
	}

	for _, a := range n.Addresses() {
		rsp.Addresses = append(rsp.Addresses, a.String())
	}

	return rsp
}

// nodeDetail is what /api/node/{id} serializes.
type nodeDetail struct {
	Node     nodeRsp
	Removed  bool
	Stats    netstack.Stats
	HasStack bool
}

func (m *Monitor) nodeDetails(w http.ResponseWriter, r *http.Request) {
	nodeID, _ := strconv.Atoi(mux.Vars(r)["id"])

	if m.graph == nil {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}

	n, err := m.graph.Node(topology.NodeID(nodeID))
	if err != nil {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}

	detail := nodeDetail{Node: nodeRspOf(n), Removed: n.Removed()}
	if m.network != nil {
		if s, ok := m.network.LookupStack(n.ID()); ok {
			detail.Stats = s.Stats()
			detail.HasStack = true
		}
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(detail)
	serializer.SetMaxDepth(2)

	if err := serializer.Serialize(w); err != nil {
		m.logger.Warn("serializing node failed", "node", nodeID, "err", err)
	}
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Snapshot())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
			duration = time.Duration(v * float64(time.Second))
		}
	}

	buf := bytes.NewBuffer(nil)
	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Warn("writing response failed", "err", err)
	}
}
