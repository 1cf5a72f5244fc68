// Package app собирает сервис заказов из конфигурации и управляет его жизненным циклом.
package app

import (
	"context"
	"errors"
	"net"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	ordersv1 "github.com/vladislavdragonenkov/ordersvc/api/orders/v1"
	healthcheck "github.com/vladislavdragonenkov/ordersvc/internal/health"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/ordersvc/internal/service/grpc"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/orders"
	"github.com/vladislavdragonenkov/ordersvc/internal/telemetry"
	"github.com/vladislavdragonenkov/ordersvc/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/ordersvc/internal/version"
)

const (
	serviceName     = "orders-service"
	shutdownTimeout = 5 * time.Second
)

// Run поднимает хранилище, каталог, gRPC и HTTP серверы и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, serviceName, version.GetVersion())
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	otelMetrics, shutdownMetrics, err := telemetry.InitMetrics(serviceName, version.GetVersion())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			logger.WithError(err).Warn("failed to stop otel metrics")
		}
	}()

	deps, err := initRuntimeDependencies(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	catalogMetrics := metrics.NewCatalogMetrics()
	products, err := initCatalog(ctx, cfg, catalogMetrics, logger.WithField("layer", "catalog"))
	if err != nil {
		return err
	}
	defer products.closeFn()

	orderService := orders.NewService(deps.repo, products.catalog, metrics.NewOrderMetrics(), logger.WithField("layer", "service"))
	grpcOrders := grpcsvc.NewOrderService(orderService, logger.WithField("layer", "grpc"))

	grpcServer, healthServer := newGRPCServer(grpcOrders, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	healthHandler.RegisterChecker("catalog", healthcheck.NewOptionalChecker("catalog", func(context.Context) error {
		if !products.ready() {
			return errors.New("catalog reply channel is not ready")
		}
		return nil
	}))

	router := newHTTPRouter(healthHandler, httpapi.NewHandler(grpcOrders, logger.WithField("layer", "http")), otelMetrics)
	httpSrv := startHTTPServer(ctx, cfg.HTTPAddr, logger, router)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(httpSrv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stoppedCh := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stoppedCh)
		}()
		select {
		case <-stoppedCh:
		case <-time.After(shutdownTimeout):
			logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
			grpcServer.Stop()
		}
		shutdownHTTP(httpSrv, logger)
		return ctx.Err()

	case err := <-errCh:
		shutdownHTTP(httpSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// newGRPCServer регистрирует сервис заказов, grpc health и метрики интерсепторов.
// Reflection не подключается: сервис описан вручную и не имеет protobuf-дескрипторов.
func newGRPCServer(svc ordersv1.OrdersServiceServer, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			logger.WithError(err).Warn("failed to register grpc metrics")
		} else if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
			grpcMetrics = existing
		}
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	ordersv1.RegisterOrdersServiceServer(server, svc)
	grpcMetrics.InitializeMetrics(server)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}
