package rpc

import (
	"encoding/json"
	"errors"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/asm"
	"github.com/fortiblox/torland/pkg/genebank"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/isa"
)

// Version is reported by getVersion.
const Version = "torland-0.1.0"

// parseArgs splits positional params. Absent params yield no args.
func parseArgs(params json.RawMessage) ([]json.RawMessage, *RPCError) {
	if len(params) == 0 || string(params) == "null" {
		return nil, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, InvalidParamsError("invalid params")
	}
	return args, nil
}

// parsePos reads x and y from the first two args.
func parsePos(args []json.RawMessage) (types.Pos, *RPCError) {
	if len(args) < 2 {
		return types.Pos{}, InvalidParamsError("missing x, y parameters")
	}
	var pos types.Pos
	if err := json.Unmarshal(args[0], &pos.X); err != nil {
		return types.Pos{}, InvalidParamsError("invalid x")
	}
	if err := json.Unmarshal(args[1], &pos.Y); err != nil {
		return types.Pos{}, InvalidParamsError("invalid y")
	}
	return pos, nil
}

func parseString(args []json.RawMessage, i int, what string) (string, *RPCError) {
	if len(args) <= i {
		return "", InvalidParamsErrorf("missing %s parameter", what)
	}
	var s string
	if err := json.Unmarshal(args[i], &s); err != nil {
		return "", InvalidParamsErrorf("invalid %s", what)
	}
	return s, nil
}

func (s *Server) context() Context {
	return Context{Tick: s.deps.World.Tick()}
}

// Node Methods

// getHealth returns the node health status.
func (s *Server) getHealth(params json.RawMessage) (interface{}, *RPCError) {
	if !s.IsHealthy() {
		return nil, ErrNodeUnhealthy
	}
	return "ok", nil
}

// getVersion returns the node version.
func (s *Server) getVersion(params json.RawMessage) (interface{}, *RPCError) {
	return VersionInfo{
		Torland:    Version,
		Opcodes:    int(isa.NumOpcodes),
		MemorySize: isa.MemSize,
	}, nil
}

// World Methods

func (s *Server) getInfo(params json.RawMessage) (interface{}, *RPCError) {
	return ResponseWithContext{
		Context: s.context(),
		Value:   s.deps.World.Info(),
	}, nil
}

func (s *Server) getTick(params json.RawMessage) (interface{}, *RPCError) {
	return s.deps.World.Tick(), nil
}

func (s *Server) getPopulation(params json.RawMessage) (interface{}, *RPCError) {
	return ResponseWithContext{
		Context: s.context(),
		Value:   s.deps.World.Population(),
	}, nil
}

// step advances the world. Params: [ticks?], default 1.
func (s *Server) step(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	n := 1
	if len(args) > 0 {
		if err := json.Unmarshal(args[0], &n); err != nil {
			return nil, InvalidParamsError("invalid tick count")
		}
	}
	if n < 1 || (s.config.MaxSteps > 0 && n > s.config.MaxSteps) {
		return nil, InvalidParamsErrorf("tick count must be between 1 and %d", s.config.MaxSteps)
	}

	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	for i := 0; i < n; i++ {
		if err := s.deps.Step(); err != nil {
			return nil, InternalServerErrorf("step failed at tick %d: %v", s.deps.World.Tick(), err)
		}
	}

	return StepResult{
		Tick:       s.deps.World.Tick(),
		Population: s.deps.World.Population(),
	}, nil
}

// Bot Methods

// spawn places a new bot. Params: [x, y, genome] where genome is wire text
// or a SpawnConfig naming a library entry.
func (s *Server) spawn(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pos, rpcErr := parsePos(args)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if len(args) < 3 {
		return nil, InvalidParamsError("missing genome parameter")
	}

	var cfg SpawnConfig
	if err := json.Unmarshal(args[2], &cfg.Genome); err != nil {
		if err := json.Unmarshal(args[2], &cfg); err != nil {
			return nil, InvalidParamsError("invalid genome")
		}
	}

	text := cfg.Genome
	if cfg.Name != "" {
		if s.deps.Bank == nil {
			return nil, ErrNoGenebank
		}
		rec, err := s.deps.Bank.GetByName(cfg.Name)
		if err != nil {
			return nil, toRPCError(err)
		}
		text = rec.Text
	}
	if text == "" {
		return nil, InvalidParamsError("missing genome parameter")
	}

	if err := s.deps.World.Spawn(pos, text); err != nil {
		return nil, toRPCError(err)
	}
	info, err := s.deps.World.BotInfo(pos)
	if err != nil {
		// The bot may already have been displaced by a concurrent tick.
		return nil, toRPCError(err)
	}
	return ResponseWithContext{Context: s.context(), Value: info}, nil
}

// getBotInfo returns the bot at [x, y].
func (s *Server) getBotInfo(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pos, rpcErr := parsePos(args)
	if rpcErr != nil {
		return nil, rpcErr
	}

	info, err := s.deps.World.BotInfo(pos)
	if err != nil {
		return nil, toRPCError(err)
	}
	return ResponseWithContext{Context: s.context(), Value: info}, nil
}

// getCell returns the resources and occupant summary at [x, y].
func (s *Server) getCell(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pos, rpcErr := parsePos(args)
	if rpcErr != nil {
		return nil, rpcErr
	}

	cell, err := s.deps.World.Cell(pos)
	if err != nil {
		return nil, toRPCError(err)
	}
	info := CellInfo{
		X:        pos.X,
		Y:        pos.Y,
		Sun:      cell.Sun,
		Mineral:  cell.Mineral,
		Occupied: cell.Occupied(),
	}
	if cell.Occupied() {
		if bi, err := s.deps.World.BotInfo(pos); err == nil {
			info.Colony = &bi.Colony
			info.Energy = &bi.Energy
		}
	}
	return ResponseWithContext{Context: s.context(), Value: info}, nil
}

// Assembler Methods

// compile assembles [source] into genome wire text.
func (s *Server) compile(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	src, rpcErr := parseString(args, 0, "source")
	if rpcErr != nil {
		return nil, rpcErr
	}

	code, err := asm.Compile(src)
	if err != nil {
		return nil, CompileError(err)
	}
	g, err := genome.New(0, code, isa.MemSize)
	if err != nil {
		return nil, toRPCError(err)
	}
	return CompileResult{
		Genome:      genome.Encode(g),
		Len:         g.Len(),
		Fingerprint: g.Fingerprint(),
	}, nil
}

// decompile disassembles [text].
func (s *Server) decompile(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	text, rpcErr := parseString(args, 0, "genome")
	if rpcErr != nil {
		return nil, rpcErr
	}

	src, err := asm.DecompileText(text)
	if err != nil {
		return nil, toRPCError(err)
	}
	return src, nil
}

// Library Methods

// saveGenome stores [name, text] in the genome library.
func (s *Server) saveGenome(params json.RawMessage) (interface{}, *RPCError) {
	if s.deps.Bank == nil {
		return nil, ErrNoGenebank
	}
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	name, rpcErr := parseString(args, 0, "name")
	if rpcErr != nil {
		return nil, rpcErr
	}
	text, rpcErr := parseString(args, 1, "genome")
	if rpcErr != nil {
		return nil, rpcErr
	}

	hash, err := s.deps.Bank.Put(name, text)
	if err != nil {
		return nil, toRPCError(err)
	}
	return hash, nil
}

// getGenome looks up [nameOrHash] in the genome library. Names win over
// fingerprints.
func (s *Server) getGenome(params json.RawMessage) (interface{}, *RPCError) {
	if s.deps.Bank == nil {
		return nil, ErrNoGenebank
	}
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	key, rpcErr := parseString(args, 0, "name")
	if rpcErr != nil {
		return nil, rpcErr
	}

	rec, err := s.deps.Bank.GetByName(key)
	if errors.Is(err, genebank.ErrGenomeNotFound) {
		if hash, herr := types.HashFromBase58(key); herr == nil {
			rec, err = s.deps.Bank.Get(hash)
		}
	}
	if err != nil {
		return nil, toRPCError(err)
	}
	return toGenomeRecord(rec, true), nil
}

// listGenomes returns every library entry without its text.
func (s *Server) listGenomes(params json.RawMessage) (interface{}, *RPCError) {
	if s.deps.Bank == nil {
		return nil, ErrNoGenebank
	}
	recs, err := s.deps.Bank.List()
	if err != nil {
		return nil, InternalServerErrorf("failed to list genomes: %v", err)
	}
	out := make([]GenomeRecord, len(recs))
	for i := range recs {
		out[i] = toGenomeRecord(&recs[i], false)
	}
	return out, nil
}

func toGenomeRecord(rec *genebank.Record, withText bool) GenomeRecord {
	out := GenomeRecord{
		Hash:  rec.Hash,
		Name:  rec.Name,
		Len:   rec.Len,
		Added: rec.Added,
	}
	if withText {
		out.Text = rec.Text
	}
	return out
}

// History Methods

// getCensus returns census samples. Params: [] for the latest sample,
// [tick] for one sample, [from, to] for an inclusive range.
func (s *Server) getCensus(params json.RawMessage) (interface{}, *RPCError) {
	if s.deps.Census == nil {
		return nil, ErrNoCensus
	}
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	ticks := make([]uint64, len(args))
	for i, arg := range args {
		if err := json.Unmarshal(arg, &ticks[i]); err != nil {
			return nil, InvalidParamsError("invalid tick")
		}
	}

	switch len(ticks) {
	case 0:
		sample, err := s.deps.Census.Latest()
		if err != nil {
			return nil, toRPCError(err)
		}
		return sample, nil
	case 1:
		sample, err := s.deps.Census.Get(ticks[0])
		if err != nil {
			return nil, toRPCError(err)
		}
		return sample, nil
	case 2:
		if ticks[0] > ticks[1] {
			return nil, InvalidParamsError("from must not exceed to")
		}
		samples, err := s.deps.Census.Range(ticks[0], ticks[1])
		if err != nil {
			return nil, toRPCError(err)
		}
		return samples, nil
	default:
		return nil, InvalidParamsError("too many parameters")
	}
}
