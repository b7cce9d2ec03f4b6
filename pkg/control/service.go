// Package control exposes a running world over gRPC.
//
// The service is described by a hand-written grpc.ServiceDesc and exchanges
// plain Go structs through a JSON codec, so no protobuf generation is
// involved. Clients must call with the "json" content subtype; Dial does
// this.
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/bot"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/world"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "torland.control.v1.Control"

// Full method names.
const (
	MethodStep    = "/" + ServiceName + "/Step"
	MethodSpawn   = "/" + ServiceName + "/Spawn"
	MethodGetInfo = "/" + ServiceName + "/GetInfo"
	MethodGetBot  = "/" + ServiceName + "/GetBot"
)

// StepRequest asks for Ticks world updates. Zero means one.
type StepRequest struct {
	Ticks int `json:"ticks"`
}

// StepResponse reports the world after stepping.
type StepResponse struct {
	Tick       uint64 `json:"tick"`
	Population int    `json:"population"`
}

// SpawnRequest places a bot running Genome (wire text) at X, Y.
type SpawnRequest struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Genome string `json:"genome"`
}

// SpawnResponse describes the new bot.
type SpawnResponse struct {
	Bot bot.Info `json:"bot"`
}

// InfoRequest is empty.
type InfoRequest struct{}

// InfoResponse summarizes the world.
type InfoResponse struct {
	Tick       uint64     `json:"tick"`
	Population int        `json:"population"`
	Info       world.Info `json:"info"`
}

// BotRequest selects the bot at X, Y.
type BotRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BotResponse describes one bot.
type BotResponse struct {
	Bot bot.Info `json:"bot"`
}

// ControlServer is the server API of the control service.
type ControlServer interface {
	Step(context.Context, *StepRequest) (*StepResponse, error)
	Spawn(context.Context, *SpawnRequest) (*SpawnResponse, error)
	GetInfo(context.Context, *InfoRequest) (*InfoResponse, error)
	GetBot(context.Context, *BotRequest) (*BotResponse, error)
}

// ServiceDesc describes the control service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Step", Handler: stepHandler},
		{MethodName: "Spawn", Handler: spawnHandler},
		{MethodName: "GetInfo", Handler: getInfoHandler},
		{MethodName: "GetBot", Handler: getBotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "torland/control/v1/control.proto",
}

// RegisterControlServer registers srv on s.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func stepHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StepRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Step(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodStep}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).Step(ctx, req.(*StepRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func spawnHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SpawnRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Spawn(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodSpawn}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).Spawn(ctx, req.(*SpawnRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).GetInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetInfo}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).GetInfo(ctx, req.(*InfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getBotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(BotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).GetBot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetBot}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).GetBot(ctx, req.(*BotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Config holds control server configuration.
type Config struct {
	// Addr is the listen address (host:port).
	Addr string

	// MaxSteps caps the ticks a single Step call may run.
	MaxSteps int

	// MaxMessageSize limits received messages in bytes.
	MaxMessageSize int

	// KeepaliveTime is the interval between server pings on idle connections.
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for a ping ack.
	KeepaliveTimeout time.Duration
}

// DefaultConfig returns a default control server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:             ":8800",
		MaxSteps:         1000,
		MaxMessageSize:   4 * 1024 * 1024,
		KeepaliveTime:    30 * time.Second,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// Server implements ControlServer over a world.
type Server struct {
	config Config
	world  *world.World
	step   func() error

	stepMu sync.Mutex

	mu   sync.Mutex
	grpc *grpc.Server
}

var _ ControlServer = (*Server)(nil)

// NewServer creates a control server. step advances the world one tick and
// defaults to w.Update.
func NewServer(config Config, w *world.World, step func() error) *Server {
	if step == nil {
		step = w.Update
	}
	return &Server{config: config, world: w, step: step}
}

// Step advances the world.
func (s *Server) Step(ctx context.Context, req *StepRequest) (*StepResponse, error) {
	n := req.Ticks
	if n == 0 {
		n = 1
	}
	if n < 0 || (s.config.MaxSteps > 0 && n > s.config.MaxSteps) {
		return nil, status.Errorf(codes.InvalidArgument, "ticks must be between 1 and %d", s.config.MaxSteps)
	}

	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, status.FromContextError(err).Err()
		}
		if err := s.step(); err != nil {
			return nil, status.Errorf(codes.Internal, "step: %v", err)
		}
	}
	return &StepResponse{Tick: s.world.Tick(), Population: s.world.Population()}, nil
}

// Spawn places a new bot.
func (s *Server) Spawn(ctx context.Context, req *SpawnRequest) (*SpawnResponse, error) {
	pos := types.Pos{X: req.X, Y: req.Y}
	if err := s.world.Spawn(pos, req.Genome); err != nil {
		return nil, toStatus(err)
	}
	info, err := s.world.BotInfo(pos)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SpawnResponse{Bot: info}, nil
}

// GetInfo summarizes the world.
func (s *Server) GetInfo(ctx context.Context, req *InfoRequest) (*InfoResponse, error) {
	return &InfoResponse{
		Tick:       s.world.Tick(),
		Population: s.world.Population(),
		Info:       s.world.Info(),
	}, nil
}

// GetBot describes the bot at the requested position.
func (s *Server) GetBot(ctx context.Context, req *BotRequest) (*BotResponse, error) {
	info, err := s.world.BotInfo(types.Pos{X: req.X, Y: req.Y})
	if err != nil {
		return nil, toStatus(err)
	}
	return &BotResponse{Bot: info}, nil
}

// toStatus maps package errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, world.ErrOutOfBounds):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, world.ErrCellOccupied):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, world.ErrNoBot):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, genome.ErrMalformedText),
		errors.Is(err, genome.ErrDecompress),
		errors.Is(err, genome.ErrDeserialize),
		errors.Is(err, genome.ErrEmpty),
		errors.Is(err, genome.ErrInvalid):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ServerOptions returns the grpc.Server options derived from the config.
func (s *Server) ServerOptions() []grpc.ServerOption {
	opts := []grpc.ServerOption{}
	if s.config.MaxMessageSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(s.config.MaxMessageSize))
	}
	if s.config.KeepaliveTime > 0 {
		opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    s.config.KeepaliveTime,
			Timeout: s.config.KeepaliveTimeout,
		}))
	}
	return opts
}

// Start listens on the configured address and serves until ctx is done or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.grpc != nil {
		s.mu.Unlock()
		return fmt.Errorf("control server already running")
	}
	gs := grpc.NewServer(s.ServerOptions()...)
	RegisterControlServer(gs, s)
	s.grpc = gs
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	log.Printf("[CONTROL] Server starting on %s", ln.Addr())
	if err := gs.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop stops the server, waiting for in-flight calls.
func (s *Server) Stop() {
	s.mu.Lock()
	gs := s.grpc
	s.mu.Unlock()
	if gs != nil {
		gs.GracefulStop()
	}
}
