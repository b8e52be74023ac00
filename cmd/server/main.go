package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/arnavshah/study-planner-api/pkg/auth"
	"github.com/arnavshah/study-planner-api/pkg/config"
	"github.com/arnavshah/study-planner-api/pkg/database"
	"github.com/arnavshah/study-planner-api/pkg/handlers"
	"github.com/arnavshah/study-planner-api/pkg/logging"
	"github.com/arnavshah/study-planner-api/pkg/metrics"
	"github.com/arnavshah/study-planner-api/pkg/scheduler"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Setup("production")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.Setup(cfg.Environment)

	switch {
	case cfg.GinMode != "":
		gin.SetMode(cfg.GinMode)
	case cfg.IsDevelopment():
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.InitDB(cfg.DatabaseURL, cfg.DataPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not open database")
	}
	if err := auth.EnsureAdminExists(db, cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
		logger.Fatal().Err(err).Msg("could not ensure admin user")
	}

	h := newHandler(cfg, db, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("could not run server")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

func newHandler(cfg *config.Config, db *gorm.DB, logger zerolog.Logger) *handlers.Handler {
	return &handlers.Handler{
		Store:                   database.NewStore(db),
		Auth:                    auth.New(cfg.JWTSecret, cfg.APIMasterSecret),
		Allocator:               scheduler.NewAllocator(scheduler.WithLogger(logger)),
		Metrics:                 metrics.NewRecorder(),
		Logger:                  logger.With().Str("component", "http").Logger(),
		RecommendedDailyMinutes: cfg.RecommendedDailyMinutes,
		DefaultCycleType:        cfg.DefaultCycleType,
	}
}
