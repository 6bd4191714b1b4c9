// Package http exposes the prediction service over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/model"
	"github.com/couchcryptid/fire-risk-service/internal/predict"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PredictionHandler validates and scores a raw request body.
type PredictionHandler interface {
	Handle(ctx context.Context, body []byte, opts predict.Options) (domain.Prediction, error)
}

// ModelDescriber reports metadata about the loaded model.
type ModelDescriber interface {
	Info() model.Info
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// Server exposes the prediction API plus health, readiness and metrics routes.
type Server struct {
	httpServer   *http.Server
	logger       *slog.Logger
	predictor    PredictionHandler
	model        ModelDescriber
	maxBodyBytes int64
}

// NewServer creates an HTTP server with the prediction routes and
// /healthz, /readyz and /metrics.
func NewServer(addr string, predictor PredictionHandler, describer ModelDescriber, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:       logger,
		predictor:    predictor,
		model:        describer,
		maxBodyBytes: opts.MaxBodyBytes,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Post("/predict", s.handlePredict)
	r.Get("/model", s.handleModel)
	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"Hello": "World"})
}

func (s *Server) handleModel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.model.Info())
}

// predictionResponse is the body of a successful POST /predict.
type predictionResponse struct {
	ID             string                    `json:"id"`
	Target         string                    `json:"target"`
	Prediction     string                    `json:"prediction"`
	PredictedClass string                    `json:"predicted_class"`
	Probabilities  []domain.ClassProbability `json:"probabilities"`
	Imputed        domain.Imputation         `json:"imputed"`
	Explanations   []domain.Explanation      `json:"explanations,omitempty"`
	PredictedAt    time.Time                 `json:"predicted_at"`
}

func newPredictionResponse(p domain.Prediction) predictionResponse {
	imputed := p.Imputed
	if imputed == nil {
		imputed = domain.Imputation{}
	}
	return predictionResponse{
		ID:             p.ID,
		Target:         p.Target,
		Prediction:     domain.ProbabilityText(p.Probabilities),
		PredictedClass: p.PredictedClass,
		Probabilities:  p.Probabilities,
		Imputed:        imputed,
		Explanations:   p.Explanations,
		PredictedAt:    p.PredictedAt,
	}
}

type errorResponse struct {
	Error  string              `json:"error"`
	Detail []domain.FieldError `json:"detail,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	opts, err := parsePredictOptions(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read request body"})
		return
	}

	p, err := s.predictor.Handle(r.Context(), body, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPredictionResponse(p))
}

func parsePredictOptions(r *http.Request) (predict.Options, error) {
	var opts predict.Options
	if raw := r.URL.Query().Get("explain"); raw != "" {
		explain, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.New("invalid explain parameter")
		}
		opts.Explain = explain
	}
	return opts, nil
}

// writeError maps service errors to responses. Validation problems are
// echoed to the caller; anything else is reported opaquely. The service has
// already logged the failure with the request ID.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		if verr.Has("body") {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body", Detail: verr.Fields})
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Detail: verr.Fields})
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
