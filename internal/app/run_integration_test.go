package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	ordersv1 "github.com/vladislavdragonenkov/ordersvc/api/orders/v1"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	require.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	require.ErrorContains(t, err, "unsupported storage driver")
}

func TestRun_InvalidCatalogDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CatalogDriver = "invalid-driver"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	require.ErrorContains(t, err, "unsupported catalog driver")
}

func TestRun_ServesOrders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GRPCAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.CatalogProducts = `[{"id":"p1","name":"A","price":"10"},{"id":"p2","name":"B","price":"5"}]`

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	conn, err := grpc.NewClient(cfg.GRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	healthClient := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		callCtx, callCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer callCancel()
		resp, err := healthClient.Check(callCtx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 3*time.Second, 50*time.Millisecond)

	client := ordersv1.NewOrdersServiceClient(conn)
	created, err := client.CreateOrder(context.Background(), &ordersv1.CreateOrderRequest{
		Items: []ordersv1.LineItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "25", created.TotalAmount.String())
	require.EqualValues(t, 3, created.TotalItems)

	cancel()
	select {
	case err := <-done:
		require.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
