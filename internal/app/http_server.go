package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	healthcheck "github.com/vladislavdragonenkov/ordersvc/internal/health"
)

// routeMounter добавляет маршруты в общий роутер.
type routeMounter interface {
	Routes(r chi.Router)
}

// newHTTPRouter собирает служебные маршруты и, если передан, HTTP API заказов.
// extra добавляет к /metrics реестр метрик OpenTelemetry.
func newHTTPRouter(healthHandler *healthcheck.Handler, api routeMounter, extra prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	metricsHandler := promhttp.Handler()
	if extra != nil {
		metricsHandler = promhttp.HandlerFor(prometheus.Gatherers{prometheus.DefaultGatherer, extra}, promhttp.HandlerOpts{})
	}
	r.Handle("/metrics", metricsHandler)
	r.Handle("/healthz", healthHandler)
	r.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	r.HandleFunc("/livez", healthcheck.LivenessHandler)

	if api != nil {
		api.Routes(r)
	}
	return otelhttp.NewHandler(r, "orders-http",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/metrics" && req.URL.Path != "/livez"
		}),
	)
}

// startHTTPServer запускает HTTP-сервер и останавливает его при отмене ctx.
func startHTTPServer(ctx context.Context, addr string, logger *log.Entry, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
