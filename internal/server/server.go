package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/shiprate/internal/graphql"
	"github.com/tournevent/shiprate/internal/telemetry"
	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-ID"
)

type requestIDKey struct{}

// Server is the HTTP server for the rating service.
type Server struct {
	config    Config
	logger    *otelzap.Logger
	gqlServer *handler.Server
	handler   http.Handler
}

// Config holds server configuration.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Gatherer serves /metrics; nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
}

// New creates a new server instance.
func New(cfg Config, manager *shipping.RateManager, metrics *telemetry.Metrics, logger *otelzap.Logger) (*Server, error) {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		config:    cfg,
		logger:    logger,
		gqlServer: graphql.NewHandler(graphql.NewResolver(manager, logger, metrics)),
	}
	s.gqlServer.AroundResponses(s.logResponse)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/graphql", s.postOnly(http.MaxBytesHandler(s.gqlServer, maxBodyBytes)))
	mux.Handle("/playground", playground.Handler("shiprate", "/graphql"))
	s.handler = s.withRequestID(mux)

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.config.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// postOnly answers every method but POST with 405 and a GraphQL error body.
func (s *Server) postOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			resp := &gql.Response{Errors: gqlerror.List{gqlerror.Errorf("Method not allowed, use POST")}}
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				s.logger.Warn("Failed to write response", zap.Error(err))
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logResponse(ctx context.Context, next gql.ResponseHandler) *gql.Response {
	start := time.Now()
	resp := next(ctx)
	if resp == nil {
		return nil
	}

	operation := ""
	if gql.HasOperationContext(ctx) {
		operation = gql.GetOperationContext(ctx).OperationName
	}
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	s.logger.Ctx(ctx).Info("GraphQL request",
		zap.String("request_id", requestID),
		zap.String("operation", operation),
		zap.Int("errors", len(resp.Errors)),
		zap.Duration("duration", time.Since(start)),
	)
	return resp
}
