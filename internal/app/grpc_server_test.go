package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	ordersv1 "github.com/vladislavdragonenkov/ordersvc/api/orders/v1"
	"github.com/vladislavdragonenkov/ordersvc/internal/catalog"
	grpcsvc "github.com/vladislavdragonenkov/ordersvc/internal/service/grpc"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/orders"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
)

func TestNewGRPCServer_RegisteredServices(t *testing.T) {
	logger := log.WithField("test", "grpc-server")
	svc := orders.NewService(memory.NewOrderRepository(), catalog.NewStatic(), nil, logger)

	// Второй вызов проверяет повторную регистрацию метрик в общем реестре.
	for range 2 {
		server, healthServer := newGRPCServer(grpcsvc.NewOrderService(svc, logger), logger)
		require.NotNil(t, healthServer)

		services := server.GetServiceInfo()
		require.Contains(t, services, ordersv1.ServiceName)
		require.Contains(t, services, healthpb.Health_ServiceDesc.ServiceName)
		require.Len(t, services, 2, "no reflection service without protobuf descriptors")
		server.Stop()
	}
}
