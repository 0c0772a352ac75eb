package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vidtube/identity/config"
	"github.com/vidtube/identity/internal/auth"
	"github.com/vidtube/identity/internal/db"
	"github.com/vidtube/identity/internal/handlers"
	"github.com/vidtube/identity/internal/mq"
	"github.com/vidtube/identity/internal/services"
	"github.com/vidtube/identity/internal/storage"
	"github.com/vidtube/identity/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	logger     *slog.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Token)
	if err != nil {
		return nil, err
	}
	hasher := auth.NewPasswordHasher(cfg.PasswordCost)

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	media := storage.NewMediaUploader(objects, cfg.Storage.PublicBaseURL)

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	var events services.EventPublisher
	if broker != nil {
		publisher, err := mq.NewAccountEventPublisher(broker, cfg.MQ.AccountsChannel)
		if err != nil {
			_ = broker.Close()
			_ = dbConn.Close()
			return nil, err
		}
		events = publisher
	}

	accountRepo := store.NewAccountRepository(dbConn)
	sessions := services.NewSessionManager(accountRepo, hasher, tokens, media, events, logger)
	authHandler := handlers.NewAuthHandler(sessions, cfg.Cookie, cfg.Upload, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/v1/users", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         broker,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil once Shutdown has been called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if mqErr := s.mq.Close(); mqErr != nil {
			s.logger.Warn("failed to close mq", "error", mqErr)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
