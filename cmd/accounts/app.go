package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/accounts/internal/db"
	"github.com/nkiryanov/accounts/internal/handlers"
	"github.com/nkiryanov/accounts/internal/handlers/middleware"
	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/mailer"
	"github.com/nkiryanov/accounts/internal/repository/postgres"
	"github.com/nkiryanov/accounts/internal/service/account"
	"github.com/nkiryanov/accounts/internal/service/auth"
	"github.com/nkiryanov/accounts/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/accounts/internal/service/outbox"
	"github.com/nkiryanov/accounts/internal/token"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	outbox *outbox.Processor
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey}, storage.Refresh())
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	tokens, err := token.New(token.Config{SecretKey: c.SecretKey, TTL: c.TokenTTL})
	if err != nil {
		return nil, fmt.Errorf("error while creating token generator. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	accountService, err := account.NewService(account.Config{SiteURL: c.SiteURL}, tokens, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating account service. Err: %w", err)
	}

	// Initialize mail delivery
	m, err := newMailer(c, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating mailer. Err: %w", err)
	}
	mailProcessor := outbox.New(storage.Mail(), m, logger)

	// Initialize handlers
	accountHandler := handlers.NewAccount(accountService)
	authHandler := handlers.NewAuth(authService)
	authMiddleware := middleware.AuthMiddleware(authService)

	mux := handlers.NewRouter(
		accountHandler,
		authHandler,
		authMiddleware,
		middleware.LoggerMiddleware(logger),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     logger,
		outbox:     mailProcessor,
	}, nil
}

func newMailer(c *Config, l logger.Logger) (mailer.Mailer, error) {
	if c.SMTPAddr == "" {
		l.Warn("SMTP address not set, letters will be written to the log")
		return mailer.LogMailer{Logger: l}, nil
	}

	return mailer.NewSMTP(mailer.SMTPConfig{
		Addr:     c.SMTPAddr,
		Username: c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	})
}

// Run starts the outbox processor and http server
// Closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	// Start mail outbox processing
	outboxStopped := s.outbox.Process(srvCtx)

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-outboxStopped

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
