package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"bondedlink/internal/link/model"
	"bondedlink/internal/link/realtime"
)

func TestStopGRPC_BoundedByContext(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil)
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hub.Register(srv)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	subCtx, cancelSub := context.WithCancel(context.Background())
	defer cancelSub()
	go func() {
		_ = realtime.NewClient(conn).Subscribe(subCtx, "conv-1", func(model.Message) {})
	}()
	require.Eventually(t, func() bool { return hub.Subscribers("conv-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	// the hub is left open, so only the deadline can end the stop
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	returned := make(chan struct{})
	go func() {
		stopGRPC(ctx, srv, zap.NewNop())
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(3 * time.Second):
		t.Fatal("stopGRPC ignored the shutdown deadline")
	}
}
