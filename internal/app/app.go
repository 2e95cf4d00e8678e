package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/dairydesk/internal/health"
	"github.com/vladislavdragonenkov/dairydesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dairydesk/internal/metrics"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/httpapi"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/idempotency"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/outbox"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/session"
	"github.com/vladislavdragonenkov/dairydesk/internal/version"
)

const (
	shutdownTimeout         = 5 * time.Second
	maxPendingOutboxRecords = 1000
	readHeaderTimeout       = 5 * time.Second
)

// Run поднимает рабочее место: хранилище, desk, HTTP API, gRPC health,
// метрики и фоновые воркеры. Возвращается после отмены ctx или ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	producer, _ := initKafkaProducer(cfg.Brokers(), logger)
	defer closeKafka(producer, logger)

	deskOpts := []session.Option{
		session.WithLogger(log.WithField("component", "desk")),
		session.WithSeedProvider(newSeedProvider(cfg, logger)),
		session.WithMetrics(metrics.NewDeskMetrics()),
		session.WithLocation(loc),
	}
	if producer != nil {
		deskOpts = append(deskOpts, session.WithOutbox(deps.outboxRepo))
	}
	desk := session.New(deps.kv, deskOpts...)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}
	if producer != nil {
		healthHandler.RegisterChecker("outbox", healthcheck.NewOptionalChecker("outbox", func(context.Context) error {
			stats, err := deps.outboxRepo.Stats()
			if err != nil {
				return err
			}
			if stats.PendingCount > maxPendingOutboxRecords {
				return fmt.Errorf("outbox backlog is %d events", stats.PendingCount)
			}
			return nil
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	if err := desk.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap desk: %w", err)
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer func() {
		cancelWorkers()
		workers.Wait()
	}()

	if producer != nil {
		workerCfg := outbox.DefaultConfig()
		workerCfg.Logger = log.WithField("component", "outbox-worker")
		workerCfg.DeadLetter = kafka.NewDLQPublisher(producer, cfg.KafkaTopic)
		workerCfg.PollInterval = cfg.OutboxPollInterval
		worker := outbox.NewWorker(deps.outboxRepo, kafka.NewOutboxPublisher(producer, cfg.KafkaTopic), workerCfg)
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Run(workerCtx)
		}()
	}

	sweeper := idempotency.NewSweeper(deps.idempotencyRepo, idempotency.SweepConfig{
		Interval:  cfg.IdempotencyCleanupInterval,
		BatchSize: cfg.IdempotencyCleanupBatchSize,
		Logger:    log.WithField("component", "idempotency-sweeper"),
	})
	workers.Add(1)
	go func() {
		defer workers.Done()
		sweeper.Run(workerCtx)
	}()

	errCh := make(chan error, 2)

	api := httpapi.NewHandler(
		desk,
		idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL, log.WithField("component", "idempotency-guard")),
		log.WithField("component", "http-api"),
	)
	apiSrv, err := startAPIServer(cfg.HTTPAddr, api.Router(), logger, errCh)
	if err != nil {
		return err
	}
	defer shutdownHTTP(apiSrv, logger)

	grpcServer, healthServer := newGRPCServer(logger)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	go func() {
		logger.Infof("gRPC health сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	healthHandler.SetReady(true)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthHandler.SetReady(false)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, logger)
		return ctx.Err()
	case err := <-errCh:
		healthHandler.SetReady(false)
		stopGRPC(grpcServer, logger)
		if errors.Is(err, grpc.ErrServerStopped) || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newGRPCServer создаёт gRPC-сервер со стандартным health-сервисом и метриками.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

func stopGRPC(grpcServer *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		grpcServer.Stop()
	}
}

// startAPIServer слушает addr и отдаёт HTTP API; ошибки Serve уходят в errCh.
func startAPIServer(addr string, handler http.Handler, logger *log.Entry, errCh chan<- error) (*http.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen http api: %w", err)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("HTTP API слушает %s", lis.Addr())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return srv, nil
}

// startMetricsServer запускает HTTP-обработчик /metrics и health-эндпоинты.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
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
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
