package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"airwatch/internal/auth"
	"airwatch/internal/config"
	"airwatch/internal/engine"
	"airwatch/internal/events"
	"airwatch/internal/handlers"
	"airwatch/internal/logger"
	"airwatch/internal/store"
)

// Service is the high-level coordinator wiring the store, engine, alert
// event publisher, and HTTP server.
type Service struct {
	cfg        *config.Config
	store      store.Store
	publisher  events.Publisher
	engine     *engine.Engine
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Service with given config.
func New(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log := logger.WithComponent("service")
	log.Info().Msg("service starting")

	if err := s.initStore(ctx); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer s.store.Close()

	if err := s.initPublisher(); err != nil {
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}

	s.engine = engine.New(s.store, s.cfg.Thresholds, s.publisher)

	if err := s.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.Server.Addr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return s.shutdown()
}

// initStore selects the persistence backend: Postgres when a DSN is
// configured, in-memory otherwise.
func (s *Service) initStore(ctx context.Context) error {
	log := logger.WithComponent("service")

	if s.cfg.Postgres.DSN == "" {
		log.Warn().Msg("no postgres dsn configured, using in-memory store")
		s.store = store.NewMemory()
		return nil
	}

	pg, err := store.NewPostgres(ctx, s.cfg.Postgres.DSN, s.cfg.Postgres.MaxConns)
	if err != nil {
		return err
	}
	s.store = pg
	log.Info().Int32("max_conns", s.cfg.Postgres.MaxConns).Msg("postgres store initialized")
	return nil
}

// initPublisher wires the Kafka alert event stream, or a noop publisher when
// no brokers are configured.
func (s *Service) initPublisher() error {
	log := logger.WithComponent("service")

	if len(s.cfg.Kafka.Brokers) == 0 {
		log.Info().Msg("no kafka brokers configured, alert events disabled")
		s.publisher = events.NewNoop()
		return nil
	}

	pub, err := events.NewKafkaPublisher(s.cfg.Kafka)
	if err != nil {
		return err
	}
	s.publisher = pub
	log.Info().
		Strs("brokers", s.cfg.Kafka.Brokers).
		Str("topic", s.cfg.Kafka.Topic).
		Msg("kafka alert event publisher initialized")
	return nil
}

// initHTTPServer builds the API mux and operational endpoints.
func (s *Service) initHTTPServer() error {
	tokens, err := auth.NewTokenService(s.cfg.JWT)
	if err != nil {
		return err
	}
	registrar := auth.NewRegistrar(s.store, tokens)

	mux := handlers.NewRouter(handlers.RouterConfig{
		Engine:      s.engine,
		Registrar:   registrar,
		Tokens:      tokens,
		MaxBodySize: s.cfg.Server.MaxBodySize,
	})

	mux.HandleFunc("/healthz", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	return nil
}

// shutdown performs graceful shutdown
func (s *Service) shutdown() error {
	log := logger.WithComponent("service")
	log.Info().Msg("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Flush queued alert events before exiting
	log.Info().Msg("closing alert event publisher")
	if err := s.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("publisher close error")
	}

	s.wg.Wait()

	log.Info().Msg("service stopped gracefully")
	return nil
}

// healthHandler handles health check requests
func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}
