package rpc

import (
	"errors"
	"fmt"

	"github.com/fortiblox/torland/pkg/asm"
	"github.com/fortiblox/torland/pkg/census"
	"github.com/fortiblox/torland/pkg/genebank"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/world"
)

// JSON-RPC 2.0 standard error codes.
const (
	// ParseError indicates invalid JSON was received.
	ParseError = -32700

	// InvalidRequest indicates the JSON sent is not a valid Request object.
	InvalidRequest = -32600

	// MethodNotFound indicates the method does not exist.
	MethodNotFound = -32601

	// InvalidParams indicates invalid method parameters.
	InvalidParams = -32602

	// InternalError indicates an internal JSON-RPC error.
	InternalError = -32603
)

// Torland error codes.
const (
	// OutOfBounds indicates a position outside the grid.
	OutOfBounds = -32001

	// CellOccupied indicates a spawn onto an occupied cell.
	CellOccupied = -32002

	// BotNotFound indicates the cell has no occupant.
	BotNotFound = -32003

	// InvalidGenome indicates genome text that does not decode.
	InvalidGenome = -32004

	// NodeUnhealthy indicates the node is unhealthy.
	NodeUnhealthy = -32005

	// GenomeNotFound indicates the genome library has no such entry.
	GenomeNotFound = -32006

	// NotAvailable indicates an optional store is not configured.
	NotAvailable = -32007

	// SampleNotFound indicates the census has no sample for a tick.
	SampleNotFound = -32008

	// CompileFailed indicates assembler source that does not compile.
	CompileFailed = -32009
)

// Common error messages.
var (
	ErrParseError     = NewRPCError(ParseError, "Parse error")
	ErrInvalidRequest = NewRPCError(InvalidRequest, "Invalid Request")
	ErrMethodNotFound = NewRPCError(MethodNotFound, "Method not found")
	ErrInvalidParams  = NewRPCError(InvalidParams, "Invalid params")
	ErrInternalError  = NewRPCError(InternalError, "Internal error")
	ErrNodeUnhealthy  = NewRPCError(NodeUnhealthy, "Node is unhealthy")
	ErrNoGenebank     = NewRPCError(NotAvailable, "Genome library not available")
	ErrNoCensus       = NewRPCError(NotAvailable, "Census not available")
)

// NewRPCError creates a new RPC error.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
	}
}

// NewRPCErrorWithData creates a new RPC error with additional data.
func NewRPCErrorWithData(code int, message string, data interface{}) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// InvalidParamsError creates an invalid params error with a custom message.
func InvalidParamsError(msg string) *RPCError {
	return NewRPCError(InvalidParams, msg)
}

// InvalidParamsErrorf creates an invalid params error with a formatted message.
func InvalidParamsErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InvalidParams, fmt.Sprintf(format, args...))
}

// InternalServerError creates an internal server error with a custom message.
func InternalServerError(msg string) *RPCError {
	return NewRPCError(InternalError, msg)
}

// InternalServerErrorf creates an internal server error with a formatted message.
func InternalServerErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InternalError, fmt.Sprintf(format, args...))
}

// CompileError reports an assembler failure with its source position.
func CompileError(err error) *RPCError {
	var ae *asm.Error
	if errors.As(err, &ae) && ae.Line > 0 {
		return NewRPCErrorWithData(CompileFailed, err.Error(),
			map[string]int{"line": ae.Line, "word": ae.Word})
	}
	return NewRPCError(CompileFailed, err.Error())
}

// toRPCError maps package errors onto RPC error codes.
func toRPCError(err error) *RPCError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, world.ErrOutOfBounds):
		return NewRPCError(OutOfBounds, err.Error())
	case errors.Is(err, world.ErrCellOccupied):
		return NewRPCError(CellOccupied, err.Error())
	case errors.Is(err, world.ErrNoBot):
		return NewRPCError(BotNotFound, err.Error())
	case errors.Is(err, genome.ErrMalformedText),
		errors.Is(err, genome.ErrDecompress),
		errors.Is(err, genome.ErrDeserialize),
		errors.Is(err, genome.ErrEmpty),
		errors.Is(err, genome.ErrInvalid),
		errors.Is(err, genebank.ErrInvalidGenome):
		return NewRPCError(InvalidGenome, err.Error())
	case errors.Is(err, genebank.ErrInvalidName):
		return InvalidParamsError(err.Error())
	case errors.Is(err, genebank.ErrGenomeNotFound):
		return NewRPCError(GenomeNotFound, err.Error())
	case errors.Is(err, census.ErrSampleNotFound):
		return NewRPCError(SampleNotFound, err.Error())
	default:
		return InternalServerError(err.Error())
	}
}
