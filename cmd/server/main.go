package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"tourney-backend/internal/auth"
	"tourney-backend/internal/config"
	"tourney-backend/internal/handlers"
	"tourney-backend/internal/middleware"
	"tourney-backend/internal/service"
	"tourney-backend/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupLogger(cfg config.Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	logger = logger.With().Timestamp().Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}

// openStore chooses the store backend via STORE_BACKEND.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	logger := zerolog.Ctx(ctx)
	switch cfg.StoreBackend {
	case "memory":
		logger.Info().Msg("using in-memory store")
		return store.NewMemoryStore(), nil
	case "file":
		fs, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("dir", cfg.DataDir).Msg("using file store")
		return fs, nil
	case "firestore":
		fs, err := store.NewFirestoreStore(ctx, cfg.GCPProjectID, cfg.FirestoreDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("project", cfg.GCPProjectID).Str("database", cfg.FirestoreDatabase).Msg("using firestore store")
		return fs, nil
	default:
		db, err := store.OpenSQLite(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info().Str("path", cfg.DatabasePath).Msg("using sqlite store")
		return db, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger := setupLogger(cfg)
	ctx := logger.WithContext(context.Background())

	s, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer s.Close()

	hasher, err := auth.NewHasher(cfg.PasswordMode)
	if err != nil {
		logger.Fatal().Err(err).Msg("password hasher")
	}
	secret := cfg.ManagementSecret
	if secret == "" {
		if secret, err = auth.GenerateSecret(); err != nil {
			logger.Fatal().Err(err).Msg("generate management secret")
		}
		logger.Warn().Msg("MANAGEMENT_SECRET not set, management tokens will not survive a restart")
	}

	svc := service.New(s, hasher, service.WithTimeout(cfg.QueryTimeout))
	h := handlers.New(svc, auth.NewTokens(secret, cfg.ManagementTokenTTL), cfg.RequireManagementToken)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// CORS is outermost so preflight requests get headers even on errors.
	handler := middleware.Chain(mux,
		middleware.CORS(cfg.AllowedOrigin),
		middleware.RequestLogger(logger),
		middleware.Recoverer,
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("cors_origin", cfg.AllowedOrigin).
			Str("password_mode", cfg.PasswordMode).
			Bool("require_management_token", cfg.RequireManagementToken).
			Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen and serve")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("server stopped")
}
