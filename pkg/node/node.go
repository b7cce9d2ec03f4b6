// Package node provides the main orchestrator for a Torland simulation node.
//
// The Node ties together all components:
// - the World, advanced by a tick loop
// - the genome library (genebank) for named seed genomes
// - the census store for per-tick population history
// - periodic snapshot files for crash-safe resumption
// - the JSON-RPC and gRPC control servers
//
// The node manages the lifecycle of these components and provides APIs for
// monitoring progress and health.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/census"
	"github.com/fortiblox/torland/pkg/control"
	"github.com/fortiblox/torland/pkg/genebank"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/rpc"
	"github.com/fortiblox/torland/pkg/snapshot"
	"github.com/fortiblox/torland/pkg/world"
)

// Node errors.
var (
	ErrAlreadyRunning = errors.New("node is already running")
	ErrClosed         = errors.New("node is closed")
	ErrConfigInvalid  = errors.New("invalid node configuration")
	ErrInitFailed     = errors.New("node initialization failed")
)

// Seed places a genome when a fresh world is created.
type Seed struct {
	// Name refers to a genome library entry. When Genome is also set, the
	// genome is saved to the library under Name first.
	Name string

	// Genome is genome wire text.
	Genome string

	X, Y int
}

// Config holds node configuration.
type Config struct {
	// DataDir is the root directory for all node data.
	// Subdirectories are created for the genebank, census and snapshots.
	DataDir string

	// WorldConfig is the path of a JSON world description. Empty uses
	// world.DefaultFileConfig.
	WorldConfig string

	// Resume restores the newest snapshot in DataDir instead of building a
	// fresh world.
	Resume bool

	// TickInterval is the pause between ticks. Zero runs ticks back to back.
	TickInterval time.Duration

	// Paused disables the tick loop; the world only advances through the
	// step calls of the RPC and control servers.
	Paused bool

	// MaxTicks stops the tick loop once the world reaches this tick.
	// Zero means no limit.
	MaxTicks uint64

	// CensusInterval records a census sample every this many ticks.
	// Zero disables the census.
	CensusInterval uint64

	// CensusRetain is the number of samples kept. Zero keeps everything.
	CensusRetain uint64

	// SnapshotInterval writes a snapshot every this many ticks.
	// Zero disables periodic snapshots; Stop still writes one.
	SnapshotInterval uint64

	// SnapshotRetain is the number of snapshot files kept.
	SnapshotRetain int

	// Seeds are spawned into a freshly built world.
	Seeds []Seed

	// RPC server configuration.
	// RPCEnabled enables the JSON-RPC server.
	RPCEnabled bool

	// RPCAddr is the listen address for the RPC server (default ":8799").
	RPCAddr string

	// RPCLogRequests enables logging of RPC requests.
	RPCLogRequests bool

	// ControlEnabled enables the gRPC control server.
	ControlEnabled bool

	// ControlAddr is the listen address for the control server (default ":8800").
	ControlAddr string

	// Callbacks for monitoring.
	OnTick     func(tick uint64, population int)
	OnSnapshot func(tick uint64, path string)
	OnError    func(err error)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:          "./data",
		Resume:           true,
		TickInterval:     100 * time.Millisecond,
		CensusInterval:   10,
		CensusRetain:     100000,
		SnapshotInterval: 1000,
		SnapshotRetain:   3,
		RPCEnabled:       false,
		RPCAddr:          ":8799",
		RPCLogRequests:   false,
		ControlEnabled:   false,
		ControlAddr:      ":8800",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data directory is required", ErrConfigInvalid)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("%w: tick interval must not be negative", ErrConfigInvalid)
	}
	if c.SnapshotRetain < 0 {
		return fmt.Errorf("%w: snapshot retain must not be negative", ErrConfigInvalid)
	}
	if c.RPCEnabled && c.RPCAddr == "" {
		return fmt.Errorf("%w: rpc address is required", ErrConfigInvalid)
	}
	if c.ControlEnabled && c.ControlAddr == "" {
		return fmt.Errorf("%w: control address is required", ErrConfigInvalid)
	}
	for i, s := range c.Seeds {
		if s.Name == "" && s.Genome == "" {
			return fmt.Errorf("%w: seed %d needs a name or a genome", ErrConfigInvalid, i)
		}
	}
	return nil
}

// Node represents a running Torland simulation.
type Node struct {
	config Config
	fileCfg world.FileConfig

	// Core components
	world     *world.World
	bank      *genebank.Bank
	census    *census.Store
	rpcServer *rpc.Server
	control   *control.Server

	// State management
	stepMu       sync.Mutex // serializes ticks and their bookkeeping
	running      atomic.Bool
	closed       atomic.Bool
	restored     bool
	startTime    time.Time
	lastError    error
	lastErrorMu  sync.RWMutex
	lastSnapshot atomic.Uint64

	// Loop coordination
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	once   sync.Once

	// Metrics
	ticksRun   atomic.Uint64
	tickTimeNs atomic.Int64
	snapshots  atomic.Uint64
	botFaults  atomic.Uint64
}

// New creates a node: it opens storage, restores or builds the world and
// spawns the seeds. The tick loop does not run until Start is called.
func New(config *Config) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}

	// Apply defaults
	if config.DataDir == "" {
		config.DataDir = DefaultConfig().DataDir
	}
	if config.RPCAddr == "" {
		config.RPCAddr = DefaultConfig().RPCAddr
	}
	if config.ControlAddr == "" {
		config.ControlAddr = DefaultConfig().ControlAddr
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	n := &Node{
		config: *config,
		done:   make(chan struct{}),
	}
	if err := n.initialize(); err != nil {
		n.closeStorage()
		return nil, fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	return n, nil
}

// Paths inside DataDir.
func (n *Node) genebankPath() string { return filepath.Join(n.config.DataDir, "genebank", "genebank.db") }
func (n *Node) censusPath() string   { return filepath.Join(n.config.DataDir, "census") }
func (n *Node) snapshotDir() string  { return filepath.Join(n.config.DataDir, "snapshots") }

// initialize sets up all storage backends and components.
func (n *Node) initialize() error {
	// Create data directories
	if err := os.MkdirAll(n.config.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	fileCfg := world.DefaultFileConfig()
	if n.config.WorldConfig != "" {
		var err error
		if fileCfg, err = world.LoadConfig(n.config.WorldConfig); err != nil {
			return err
		}
	}
	n.fileCfg = fileCfg

	bank, err := genebank.Open(genebank.DefaultConfig(n.genebankPath()))
	if err != nil {
		return fmt.Errorf("open genebank: %w", err)
	}
	n.bank = bank

	if n.config.CensusInterval > 0 {
		store, err := census.Open(census.DefaultConfig(n.censusPath()))
		if err != nil {
			return fmt.Errorf("open census: %w", err)
		}
		n.census = store
	}

	if n.config.Resume {
		if err := n.restoreLatest(); err != nil {
			return err
		}
	}
	if n.world == nil {
		if err := n.buildWorld(); err != nil {
			return err
		}
	}

	// Initialize servers if enabled
	if n.config.RPCEnabled {
		rpcConfig := rpc.DefaultConfig()
		rpcConfig.Addr = n.config.RPCAddr
		rpcConfig.LogRequests = n.config.RPCLogRequests
		rpcConfig.EnableCORS = true

		n.rpcServer = rpc.New(rpcConfig, rpc.Deps{
			World:  n.world,
			Bank:   n.bank,
			Census: n.census,
			Step:   n.Step,
		})
	}
	if n.config.ControlEnabled {
		controlConfig := control.DefaultConfig()
		controlConfig.Addr = n.config.ControlAddr
		n.control = control.NewServer(controlConfig, n.world, n.Step)
	}

	return nil
}

// restoreLatest loads the newest snapshot, if any.
func (n *Node) restoreLatest() error {
	latest, err := snapshot.FindLatest(n.snapshotDir())
	if errors.Is(err, snapshot.ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find snapshot: %w", err)
	}

	dump, _, err := snapshot.Read(latest.Path)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", latest.Path, err)
	}
	w, err := world.Restore(dump, n.fileCfg.Seed+int64(dump.Tick), n.fileCfg.Strategy)
	if err != nil {
		return fmt.Errorf("restore snapshot %s: %w", latest.Path, err)
	}

	n.world = w
	n.restored = true
	n.lastSnapshot.Store(dump.Tick)
	return nil
}

// buildWorld creates a fresh world from the file config and spawns seeds.
func (n *Node) buildWorld() error {
	cfg, err := n.fileCfg.Build()
	if err != nil {
		return err
	}
	w, err := world.New(cfg)
	if err != nil {
		return err
	}
	n.world = w

	for i, s := range n.config.Seeds {
		text, err := n.seedText(s)
		if err != nil {
			return fmt.Errorf("seed %d: %w", i, err)
		}
		if err := w.Spawn(types.Pos{X: s.X, Y: s.Y}, text); err != nil {
			return fmt.Errorf("seed %d: %w", i, err)
		}
	}
	return nil
}

// seedText resolves a seed to genome text, saving named inline genomes.
func (n *Node) seedText(s Seed) (string, error) {
	switch {
	case s.Genome != "" && s.Name != "":
		if _, err := n.bank.Put(s.Name, s.Genome); err != nil {
			return "", err
		}
		return s.Genome, nil
	case s.Genome != "":
		if _, err := genome.Decode(0, s.Genome); err != nil {
			return "", err
		}
		return s.Genome, nil
	default:
		rec, err := n.bank.GetByName(s.Name)
		if err != nil {
			return "", err
		}
		return rec.Text, nil
	}
}

// Start begins the tick loop and the enabled servers. It returns once they
// are launched; the node runs until ctx is cancelled or Stop is called.
func (n *Node) Start(ctx context.Context) error {
	if n.closed.Load() {
		return ErrClosed
	}
	if n.running.Swap(true) {
		return ErrAlreadyRunning
	}

	// Set up cancellable context
	n.ctx, n.cancel = context.WithCancel(ctx)
	n.startTime = time.Now()

	if !n.config.Paused {
		n.wg.Add(1)
		go n.tickLoop()
	}

	// Start RPC server if enabled
	if n.rpcServer != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.rpcServer.Start(n.ctx); err != nil {
				n.reportError(fmt.Errorf("RPC server error: %w", err))
			}
		}()
	}

	// Start control server if enabled
	if n.control != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.control.Start(n.ctx); err != nil {
				n.reportError(fmt.Errorf("control server error: %w", err))
			}
		}()
	}

	return nil
}

// tickLoop advances the world until the context ends or MaxTicks is reached.
func (n *Node) tickLoop() {
	defer n.wg.Done()

	var tick <-chan time.Time
	if n.config.TickInterval > 0 {
		ticker := time.NewTicker(n.config.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if n.reachedMax() {
			n.finish()
			return
		}

		if tick != nil {
			select {
			case <-n.ctx.Done():
				return
			case <-tick:
			}
		} else {
			select {
			case <-n.ctx.Done():
				return
			default:
			}
		}

		if err := n.Step(); err != nil {
			n.reportError(err)
		}
	}
}

func (n *Node) reachedMax() bool {
	return n.config.MaxTicks > 0 && n.world.Tick() >= n.config.MaxTicks
}

func (n *Node) finish() {
	n.once.Do(func() { close(n.done) })
}

// Done is closed when the tick loop reaches MaxTicks.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Step advances the world one tick and runs the per-tick bookkeeping:
// census samples, periodic snapshots and callbacks. It is safe to call
// concurrently with the tick loop.
func (n *Node) Step() error {
	if n.closed.Load() {
		return ErrClosed
	}

	n.stepMu.Lock()
	defer n.stepMu.Unlock()

	start := time.Now()
	if err := n.world.Update(); err != nil {
		if !errors.Is(err, world.ErrBotFault) {
			return fmt.Errorf("update: %w", err)
		}
		// The tick completed; only the faulting bots were removed.
		n.botFaults.Add(1)
		n.reportError(err)
	}
	n.tickTimeNs.Store(time.Since(start).Nanoseconds())
	n.ticksRun.Add(1)

	tick := n.world.Tick()
	if n.census != nil && tick%n.config.CensusInterval == 0 {
		if err := n.recordCensus(); err != nil {
			n.reportError(err)
		}
	}
	if n.config.SnapshotInterval > 0 && tick%n.config.SnapshotInterval == 0 {
		if _, err := n.writeSnapshot(); err != nil {
			n.reportError(err)
		}
	}

	if n.config.OnTick != nil {
		n.config.OnTick(tick, n.world.Population())
	}
	return nil
}

// recordCensus stores a sample and trims old ones.
func (n *Node) recordCensus() error {
	if err := n.census.Record(census.Observe(n.world)); err != nil {
		return fmt.Errorf("record census: %w", err)
	}
	if retain := n.config.CensusRetain; retain > 0 && n.census.Count() > retain+retain/10 {
		if _, err := n.census.Prune(retain); err != nil {
			return fmt.Errorf("prune census: %w", err)
		}
	}
	return nil
}

// writeSnapshot persists the world and prunes old snapshot files.
func (n *Node) writeSnapshot() (string, error) {
	dump := n.world.Dump()
	path := filepath.Join(n.snapshotDir(), snapshot.Filename(dump.Tick))
	if err := snapshot.Write(path, dump); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	n.snapshots.Add(1)
	n.lastSnapshot.Store(dump.Tick)

	if n.config.SnapshotRetain > 0 {
		if _, err := snapshot.Prune(n.snapshotDir(), n.config.SnapshotRetain); err != nil {
			return path, fmt.Errorf("prune snapshots: %w", err)
		}
	}
	if n.config.OnSnapshot != nil {
		n.config.OnSnapshot(dump.Tick, path)
	}
	return path, nil
}

// Snapshot writes a snapshot of the current world and returns its path.
func (n *Node) Snapshot() (string, error) {
	if n.closed.Load() {
		return "", ErrClosed
	}
	n.stepMu.Lock()
	defer n.stepMu.Unlock()
	return n.writeSnapshot()
}

// Stop gracefully stops the node: loops and servers end, a final snapshot
// is written and storage is closed. A stopped node cannot be restarted.
func (n *Node) Stop() error {
	if n.closed.Swap(true) {
		return ErrClosed
	}

	if n.running.Load() {
		// Cancel context to stop all goroutines
		n.cancel()

		// Stop servers
		if n.rpcServer != nil {
			n.rpcServer.Stop()
		}
		if n.control != nil {
			n.control.Stop()
		}

		// Wait for goroutines to finish
		n.wg.Wait()
		n.running.Store(false)
	}

	// Final snapshot, unless the last one is current
	var snapErr error
	n.stepMu.Lock()
	if n.world.Tick() > n.lastSnapshot.Load() || (n.snapshots.Load() == 0 && !n.restored) {
		_, snapErr = n.writeSnapshot()
	}
	n.stepMu.Unlock()

	n.closeStorage()
	return snapErr
}

// closeStorage closes all storage backends.
func (n *Node) closeStorage() {
	if n.census != nil {
		n.census.Close()
	}
	if n.bank != nil {
		n.bank.Close()
	}
}

// World returns the simulated world.
func (n *Node) World() *world.World {
	return n.world
}

// Genebank returns the genome library.
func (n *Node) Genebank() *genebank.Bank {
	return n.bank
}

// Census returns the census store, or nil when the census is disabled.
func (n *Node) Census() *census.Store {
	return n.census
}

// Restored reports whether the world was loaded from a snapshot.
func (n *Node) Restored() bool {
	return n.restored
}

// Stats returns the current node status.
func (n *Node) Stats() *Stats {
	var uptime time.Duration
	if !n.startTime.IsZero() {
		uptime = time.Since(n.startTime)
	}

	var samples uint64
	if n.census != nil {
		samples = n.census.Count()
	}

	var rpcAddr, controlAddr string
	if n.rpcServer != nil {
		rpcAddr = n.config.RPCAddr
	}
	if n.control != nil {
		controlAddr = n.config.ControlAddr
	}

	return &Stats{
		Tick:             n.world.Tick(),
		Population:       n.world.Population(),
		IsRunning:        n.running.Load(),
		Restored:         n.restored,
		Uptime:           uptime,
		TicksRun:         n.ticksRun.Load(),
		AvgTickMs:        float64(n.tickTimeNs.Load()) / float64(time.Millisecond),
		BotFaults:        n.botFaults.Load(),
		SnapshotsWritten: n.snapshots.Load(),
		LastSnapshotTick: n.lastSnapshot.Load(),
		CensusSamples:    samples,
		Genomes:          n.bank.Count(),
		RPCAddr:          rpcAddr,
		ControlAddr:      controlAddr,
		LastError:        n.getLastError(),
	}
}

// Stats contains the current node status.
type Stats struct {
	// Tick is the world's current tick.
	Tick uint64

	// Population is the number of live bots.
	Population int

	// IsRunning indicates if the node is running.
	IsRunning bool

	// Restored indicates the world was loaded from a snapshot.
	Restored bool

	// Uptime is how long the node has been running.
	Uptime time.Duration

	// TicksRun is the number of ticks this process has run.
	TicksRun uint64

	// AvgTickMs is the duration of the most recent tick.
	AvgTickMs float64

	// BotFaults counts ticks in which a bot faulted.
	BotFaults uint64

	SnapshotsWritten uint64
	LastSnapshotTick uint64
	CensusSamples    uint64
	Genomes          uint64

	// RPCAddr is the RPC listen address (empty if disabled).
	RPCAddr string

	// ControlAddr is the control listen address (empty if disabled).
	ControlAddr string

	// LastError is the most recent error.
	LastError error
}

// reportError records err and forwards it to OnError.
func (n *Node) reportError(err error) {
	n.setLastError(err)
	if n.config.OnError != nil {
		n.config.OnError(err)
	}
}

// setLastError safely sets the last error.
func (n *Node) setLastError(err error) {
	n.lastErrorMu.Lock()
	n.lastError = err
	n.lastErrorMu.Unlock()
}

// getLastError safely gets the last error.
func (n *Node) getLastError() error {
	n.lastErrorMu.RLock()
	defer n.lastErrorMu.RUnlock()
	return n.lastError
}
