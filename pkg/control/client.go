package control

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/fortiblox/torland/pkg/bot"
)

// Client is a control service client.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a control server at target. Extra options are appended
// to the defaults, so callers may override the transport.
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Minute,
			Timeout:             10 * time.Second,
			PermitWithoutStream: false,
		}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}

	//nolint:staticcheck // DialContext keeps compatibility with older gRPC versions
	conn, err := grpc.DialContext(ctx, target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial control server: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Step advances the world by ticks and returns the new tick and population.
func (c *Client) Step(ctx context.Context, ticks int) (*StepResponse, error) {
	out := new(StepResponse)
	if err := c.conn.Invoke(ctx, MethodStep, &StepRequest{Ticks: ticks}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Spawn places a bot running genome text at x, y.
func (c *Client) Spawn(ctx context.Context, x, y int, text string) (bot.Info, error) {
	out := new(SpawnResponse)
	if err := c.conn.Invoke(ctx, MethodSpawn, &SpawnRequest{X: x, Y: y, Genome: text}, out); err != nil {
		return bot.Info{}, err
	}
	return out.Bot, nil
}

// GetInfo summarizes the world.
func (c *Client) GetInfo(ctx context.Context) (*InfoResponse, error) {
	out := new(InfoResponse)
	if err := c.conn.Invoke(ctx, MethodGetInfo, &InfoRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBot describes the bot at x, y.
func (c *Client) GetBot(ctx context.Context, x, y int) (bot.Info, error) {
	out := new(BotResponse)
	if err := c.conn.Invoke(ctx, MethodGetBot, &BotRequest{X: x, Y: y}, out); err != nil {
		return bot.Info{}, err
	}
	return out.Bot, nil
}
