// Torland: an artificial-life simulation node.
//
// This is the main entry point for the torland daemon. It builds or resumes a
// world under the data directory, runs the tick loop and optionally serves
// JSON-RPC and gRPC control endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fortiblox/torland/pkg/asm"
	"github.com/fortiblox/torland/pkg/node"
	"github.com/fortiblox/torland/pkg/world"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Configuration flags
var (
	dataDir          = flag.String("data-dir", "./data", "Data directory for genebank, census and snapshots")
	worldConfig      = flag.String("world", "", "World config JSON file (empty = built-in default)")
	resume           = flag.Bool("resume", true, "Resume from the newest snapshot in the data directory")
	tickInterval     = flag.Duration("tick", 100*time.Millisecond, "Pause between ticks (0 = as fast as possible)")
	paused           = flag.Bool("paused", false, "Do not run the tick loop; advance only through step calls")
	maxTicks         = flag.Uint64("max-ticks", 0, "Stop once the world reaches this tick (0 = no limit)")
	censusInterval   = flag.Uint64("census-interval", 10, "Record a census sample every N ticks (0 = disabled)")
	censusRetain     = flag.Uint64("census-retain", 100000, "Number of census samples kept (0 = all)")
	snapshotInterval = flag.Uint64("snapshot-interval", 1000, "Write a snapshot every N ticks (0 = only on shutdown)")
	snapshotRetain   = flag.Int("snapshot-retain", 3, "Number of snapshot files kept")
	rpcAddr          = flag.String("rpc-addr", ":8799", "RPC server listen address")
	enableRPC        = flag.Bool("enable-rpc", false, "Enable JSON-RPC server")
	logRequests      = flag.Bool("log-requests", false, "Log every RPC request")
	controlAddr      = flag.String("control-addr", ":8800", "gRPC control server listen address")
	enableControl    = flag.Bool("enable-control", false, "Enable gRPC control server")
	statusInterval   = flag.Duration("status-interval", 10*time.Second, "Status log interval")
	writeConfig      = flag.String("write-world", "", "Write the default world config to this file and exit")
	showVersion      = flag.Bool("version", false, "Print version and exit")
)

// seedFlags collects repeated -seed values.
type seedFlags []node.Seed

func (s *seedFlags) String() string {
	return fmt.Sprintf("%d seeds", len(*s))
}

func (s *seedFlags) Set(v string) error {
	seed, err := parseSeed(v)
	if err != nil {
		return err
	}
	*s = append(*s, seed)
	return nil
}

// parseSeed reads "X,Y=GENOME". GENOME is wire text, "@name" for a genebank
// entry, or a path ending in .asm which is assembled and saved under the
// file's base name.
func parseSeed(v string) (node.Seed, error) {
	pos, value, ok := strings.Cut(v, "=")
	if !ok || value == "" {
		return node.Seed{}, fmt.Errorf("seed %q: expected X,Y=GENOME", v)
	}
	xs, ys, ok := strings.Cut(pos, ",")
	if !ok {
		return node.Seed{}, fmt.Errorf("seed %q: expected X,Y position", v)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return node.Seed{}, fmt.Errorf("seed %q: bad x: %w", v, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return node.Seed{}, fmt.Errorf("seed %q: bad y: %w", v, err)
	}

	seed := node.Seed{X: x, Y: y}
	switch {
	case strings.HasPrefix(value, "@"):
		seed.Name = value[1:]
	case strings.HasSuffix(value, ".asm"):
		src, err := os.ReadFile(value)
		if err != nil {
			return node.Seed{}, fmt.Errorf("seed %q: %w", v, err)
		}
		text, err := asm.CompileText(string(src))
		if err != nil {
			return node.Seed{}, fmt.Errorf("seed %q: %s: %w", v, value, err)
		}
		seed.Name = strings.TrimSuffix(filepath.Base(value), ".asm")
		seed.Genome = text
	default:
		seed.Genome = value
	}
	return seed, nil
}

func main() {
	var seeds seedFlags
	flag.Var(&seeds, "seed", "Seed bot X,Y=GENOME for a fresh world (repeatable; GENOME is wire text, @name or file.asm)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Torland %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	if *writeConfig != "" {
		if err := world.DefaultFileConfig().Save(*writeConfig); err != nil {
			log.Fatalf("Failed to write world config: %v", err)
		}
		fmt.Printf("Wrote default world config to %s\n", *writeConfig)
		os.Exit(0)
	}

	// Setup logging
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting Torland %s", Version)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	cfg := node.DefaultConfig()
	cfg.DataDir = *dataDir
	cfg.WorldConfig = *worldConfig
	cfg.Resume = *resume
	cfg.TickInterval = *tickInterval
	cfg.Paused = *paused
	cfg.MaxTicks = *maxTicks
	cfg.CensusInterval = *censusInterval
	cfg.CensusRetain = *censusRetain
	cfg.SnapshotInterval = *snapshotInterval
	cfg.SnapshotRetain = *snapshotRetain
	cfg.Seeds = seeds
	cfg.RPCEnabled = *enableRPC
	cfg.RPCAddr = *rpcAddr
	cfg.RPCLogRequests = *logRequests
	cfg.ControlEnabled = *enableControl
	cfg.ControlAddr = *controlAddr

	cfg.OnSnapshot = func(tick uint64, path string) {
		log.Printf("[NODE] Snapshot at tick %d: %s", tick, path)
	}
	cfg.OnError = func(err error) {
		log.Printf("[NODE] Error: %v", err)
	}

	n, err := node.New(&cfg)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}

	info := n.World().Info()
	if n.Restored() {
		log.Printf("Resumed %dx%d world at tick %d with %d bots", info.Width, info.Height, n.World().Tick(), n.World().Population())
	} else {
		log.Printf("Created %dx%d world with %d bots", info.Width, info.Height, n.World().Population())
	}

	if err := n.Start(ctx); err != nil {
		log.Fatalf("Failed to start node: %v", err)
	}

	// Print status periodically
	go func() {
		ticker := time.NewTicker(*statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := n.Stats()
				log.Printf("[NODE] Status: tick=%d, population=%d, tick_ms=%.2f, snapshots=%d, census=%d, faults=%d",
					st.Tick, st.Population, st.AvgTickMs, st.SnapshotsWritten, st.CensusSamples, st.BotFaults)
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-n.Done():
		log.Printf("Reached max tick %d", *maxTicks)
	}

	st := n.Stats()
	if err := n.Stop(); err != nil && !errors.Is(err, node.ErrClosed) {
		log.Printf("Stop: %v", err)
	}
	log.Printf("Ran %d ticks, world at tick %d with %d bots", st.TicksRun, st.Tick, st.Population)
	log.Println("Torland stopped")
}
