package control

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/fortiblox/torland/pkg/bot"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/isa"
	"github.com/fortiblox/torland/pkg/world"
)

func eatsunText() string {
	return genome.EncodeCommands([]isa.Command{isa.New(isa.OpEatsun)})
}

// startBufconn serves a control server in memory and returns a connected client.
func startBufconn(t *testing.T, config Config) (*Client, *world.World) {
	t.Helper()

	w, err := world.New(world.Config{
		Height:  6,
		Width:   7,
		Sun:     func(x, y int) int64 { return 4 },
		Mineral: func(x, y int) int64 { return 2 },
		Rules:   bot.DefaultRules(),
		Seed:    3,
	})
	if err != nil {
		t.Fatalf("world.New() error = %v", err)
	}

	srv := NewServer(config, w, nil)
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(srv.ServerOptions()...)
	RegisterControlServer(gs, srv)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, "bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, w
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSpawnAndGetBot(t *testing.T) {
	client, w := startBufconn(t, DefaultConfig())
	ctx := testContext(t)

	info, err := client.Spawn(ctx, 2, 3, eatsunText())
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if !info.Alive || info.Energy != bot.DefaultRules().StartEnergy {
		t.Errorf("Spawn() = %+v", info)
	}
	if w.Population() != 1 {
		t.Errorf("Population() = %d, want 1", w.Population())
	}

	got, err := client.GetBot(ctx, 2, 3)
	if err != nil {
		t.Fatalf("GetBot() error = %v", err)
	}
	if got.Genome != eatsunText() {
		t.Errorf("GetBot().Genome = %q, want %q", got.Genome, eatsunText())
	}
}

func TestStepAndGetInfo(t *testing.T) {
	client, _ := startBufconn(t, DefaultConfig())
	ctx := testContext(t)

	if _, err := client.Spawn(ctx, 0, 0, eatsunText()); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	resp, err := client.Step(ctx, 4)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if resp.Tick != 4 || resp.Population != 1 {
		t.Errorf("Step() = %+v, want tick 4 population 1", resp)
	}

	resp, err = client.Step(ctx, 0)
	if err != nil {
		t.Fatalf("Step(0) error = %v", err)
	}
	if resp.Tick != 5 {
		t.Errorf("Step(0).Tick = %d, want 5", resp.Tick)
	}

	info, err := client.GetInfo(ctx)
	if err != nil {
		t.Fatalf("GetInfo() error = %v", err)
	}
	if info.Tick != 5 || info.Population != 1 {
		t.Errorf("GetInfo() = %+v", info)
	}
	if info.Info.Width != 7 || info.Info.Height != 6 || info.Info.MaxSun != 4 {
		t.Errorf("GetInfo().Info = %+v", info.Info)
	}
}

func TestErrorCodes(t *testing.T) {
	config := DefaultConfig()
	config.MaxSteps = 10
	client, _ := startBufconn(t, config)
	ctx := testContext(t)

	if _, err := client.Spawn(ctx, 1, 1, eatsunText()); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"occupied", func() error { _, err := client.Spawn(ctx, 1, 1, eatsunText()); return err }, codes.AlreadyExists},
		{"out of bounds", func() error { _, err := client.Spawn(ctx, 7, 0, eatsunText()); return err }, codes.OutOfRange},
		{"bad genome", func() error { _, err := client.Spawn(ctx, 0, 0, "!!"); return err }, codes.InvalidArgument},
		{"no bot", func() error { _, err := client.GetBot(ctx, 5, 5); return err }, codes.NotFound},
		{"too many ticks", func() error { _, err := client.Step(ctx, 11); return err }, codes.InvalidArgument},
		{"negative ticks", func() error { _, err := client.Step(ctx, -1); return err }, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if got := status.Code(err); got != tt.want {
				t.Errorf("status.Code() = %v, want %v (err = %v)", got, tt.want, err)
			}
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	var c jsonCodec
	if c.Name() != "json" {
		t.Errorf("Name() = %q, want %q", c.Name(), "json")
	}

	data, err := c.Marshal(&BotRequest{X: 3, Y: 9})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got BotRequest
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.X != 3 || got.Y != 9 {
		t.Errorf("Unmarshal() = %+v", got)
	}

	if err := c.Unmarshal(nil, &got); err != nil {
		t.Errorf("Unmarshal(nil) error = %v", err)
	}
	if err := c.Unmarshal([]byte("{"), &got); err == nil {
		t.Error("Unmarshal(garbage) error = nil")
	}
}
