// Package predict runs a prediction request through its lifecycle:
// validation, feature assembly, scoring and audit.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// StatsProvider supplies the reference means used for imputation.
type StatsProvider interface {
	Stats(ctx context.Context) (domain.ReferenceStats, error)
}

// AuditSink receives completed predictions. Record must not block.
type AuditSink interface {
	Record(event domain.AuditEvent)
}

// Options are per-request switches.
type Options struct {
	// Explain adds per-feature importances to the prediction.
	Explain bool
}

// Service orchestrates prediction requests. It is safe for concurrent use.
type Service struct {
	stats     StatsProvider
	predictor domain.Predictor
	audit     AuditSink
	metrics   *observability.Metrics
	logger    *slog.Logger
	newID     func() string
}

// New creates a Service. A nil audit sink disables auditing.
func New(stats StatsProvider, predictor domain.Predictor, audit AuditSink, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if audit == nil {
		audit = nopSink{}
	}
	return &Service{
		stats:     stats,
		predictor: predictor,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

type nopSink struct{}

func (nopSink) Record(domain.AuditEvent) {}

// Handle validates a raw request body and, if it is well formed, predicts.
// Validation failures return *domain.ValidationError.
func (s *Service) Handle(ctx context.Context, body []byte, opts Options) (domain.Prediction, error) {
	req, err := domain.ParseBuildingRequest(body)
	if err != nil {
		s.finish(ctx, domain.StageReceived.Next(false), "", err)
		return domain.Prediction{}, err
	}
	return s.Predict(ctx, req, opts)
}

// Predict scores an already validated request.
func (s *Service) Predict(ctx context.Context, req domain.BuildingRequest, opts Options) (domain.Prediction, error) {
	start := time.Now()
	id := s.newID()

	p, err := s.predict(ctx, id, req, opts)
	s.finish(ctx, domain.StageValidated.Next(err == nil), id, err)
	if err != nil {
		return domain.Prediction{}, err
	}

	s.metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	for col := range p.Imputed {
		s.metrics.ImputedFields.WithLabelValues(col).Inc()
	}
	s.audit.Record(domain.NewAuditEvent(p))

	s.logger.Info("prediction completed",
		"id", p.ID,
		"predicted_class", p.PredictedClass,
		"imputed", len(p.Imputed),
		"explain", opts.Explain,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", middleware.GetReqID(ctx),
	)
	return p, nil
}

func (s *Service) predict(ctx context.Context, id string, req domain.BuildingRequest, opts Options) (domain.Prediction, error) {
	stats, err := s.stats.Stats(ctx)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("reference stats: %w", err)
	}

	row, imputed := domain.BuildFeatureRow(req, stats)

	var (
		probs []domain.ClassProbability
		exp   []domain.Explanation
	)
	if opts.Explain {
		probs, exp, err = s.predictor.PredictExplain(row)
	} else {
		probs, err = s.predictor.PredictProba(row)
	}
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("score: %w", err)
	}
	p := domain.NewPrediction(id, s.predictor.Target(), probs, row, imputed)
	p.Explanations = exp
	return p, nil
}

// finish records a terminal stage. Completed requests are logged by Predict
// with their outcome. The router's request ID, when present, ties the log
// line to the HTTP access log.
func (s *Service) finish(ctx context.Context, stage domain.Stage, id string, err error) {
	s.metrics.Requests.WithLabelValues(string(stage)).Inc()

	switch stage {
	case domain.StageRejected:
		var verr *domain.ValidationError
		fields := 0
		if errors.As(err, &verr) {
			fields = len(verr.Fields)
		}
		s.logger.Info("prediction rejected", "invalid_fields", fields, "error", err,
			"request_id", middleware.GetReqID(ctx))
	case domain.StageFailed:
		s.logger.Error("prediction failed", "id", id, "error", err,
			"request_id", middleware.GetReqID(ctx))
	}
}

// CheckReadiness reports whether a prediction can currently be served: the
// model is loaded and reference statistics are obtainable.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if s.predictor == nil {
		return errors.New("model not loaded")
	}
	if _, err := s.stats.Stats(ctx); err != nil {
		return fmt.Errorf("reference stats: %w", err)
	}
	return nil
}
