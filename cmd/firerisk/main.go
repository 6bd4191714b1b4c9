package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/fire-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/fire-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/fire-risk-service/internal/audit"
	"github.com/couchcryptid/fire-risk-service/internal/config"
	"github.com/couchcryptid/fire-risk-service/internal/model"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
	"github.com/couchcryptid/fire-risk-service/internal/predict"
	"github.com/couchcryptid/fire-risk-service/internal/reference"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, stats, err := loadResources(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	// Audit trail (enabled via KAFKA_BROKERS / AUDIT_ENABLED).
	var (
		sink      predict.AuditSink = audit.Nop{}
		publisher *audit.Publisher
		writer    *kafkaadapter.Writer
		auditDone = make(chan struct{})
	)
	auditCtx, cancelAudit := context.WithCancel(context.Background())
	defer cancelAudit()

	if cfg.AuditEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = audit.New(writer, logger, metrics, audit.Options{
			BufferSize:    cfg.AuditBufferSize,
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.BatchFlushInterval,
		})
		sink = publisher
		logger.Info("prediction audit enabled", "topic", cfg.KafkaAuditTopic, "brokers", cfg.KafkaBrokers)

		go func() {
			defer close(auditDone)
			if err := publisher.Run(auditCtx); err != nil {
				logger.Error("audit publisher error", "error", err)
			}
		}()
	} else {
		close(auditDone)
		logger.Info("prediction audit disabled")
	}

	svc := predict.New(stats, m, sink, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, m, svc, logger, httpadapter.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Shutdown(shutdownCtx); err != nil {
			logger.Error("audit flush error", "error", err)
			cancelAudit()
		}
	}
	<-auditDone
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// loadResources loads the model artifact and the reference statistics
// provider concurrently. Either failure aborts startup.
func loadResources(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*model.Model, reference.Provider, error) {

	var (
		m        *model.Model
		provider reference.Provider
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loaded, err := model.Load(cfg.ModelPath)
		if err != nil {
			return err
		}
		m = loaded
		metrics.ModelLoaded.Set(1)
		info := m.Info()
		logger.Info("model loaded", "path", cfg.ModelPath, "name", info.Name, "version", info.Version,
			"target", info.Target, "classes", info.Classes)
		return nil
	})

	g.Go(func() error {
		clock := clockwork.NewRealClock()
		loader := reference.NewFileLoader(cfg.ReferenceDataPath, clock, metrics)
		p, err := reference.NewProvider(gctx, cfg.StatsMode, loader, cfg.StatsTTL, clock, logger)
		if err != nil {
			return err
		}
		provider = p
		logger.Info("reference statistics provider ready", "mode", cfg.StatsMode, "path", cfg.ReferenceDataPath)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return m, provider, nil
}
