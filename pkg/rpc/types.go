// Package rpc provides JSON-RPC 2.0 types for the Torland node API.
package rpc

import (
	"encoding/json"
	"time"

	"github.com/fortiblox/torland/internal/types"
)

// JSON-RPC 2.0 constants.
const (
	JSONRPCVersion = "2.0"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Context provides tick context for RPC responses.
type Context struct {
	Tick uint64 `json:"tick"`
}

// ResponseWithContext wraps a value with context.
type ResponseWithContext struct {
	Context Context     `json:"context"`
	Value   interface{} `json:"value"`
}

// VersionInfo is returned by getVersion.
type VersionInfo struct {
	Torland    string `json:"torland"`
	Opcodes    int    `json:"opcodes"`
	MemorySize int    `json:"memorySize"`
}

// StepResult is returned by step.
type StepResult struct {
	Tick       uint64 `json:"tick"`
	Population int    `json:"population"`
}

// SpawnConfig is the object form of the spawn genome parameter.
type SpawnConfig struct {
	// Genome is genome wire text.
	Genome string `json:"genome,omitempty"`

	// Name selects a genome from the library instead.
	Name string `json:"name,omitempty"`
}

// CellInfo describes one grid cell.
type CellInfo struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Sun      int64   `json:"sun"`
	Mineral  int64   `json:"mineral"`
	Occupied bool    `json:"occupied"`
	Colony   *uint64 `json:"colony,omitempty"`
	Energy   *int64  `json:"energy,omitempty"`
}

// CompileResult is returned by compile.
type CompileResult struct {
	Genome      string     `json:"genome"`
	Len         int        `json:"len"`
	Fingerprint types.Hash `json:"fingerprint"`
}

// GenomeRecord is a genome library entry.
type GenomeRecord struct {
	Hash  types.Hash `json:"hash"`
	Name  string     `json:"name"`
	Text  string     `json:"text,omitempty"`
	Len   int        `json:"len"`
	Added time.Time  `json:"added"`
}
