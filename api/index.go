package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/arnavshah/study-planner-api/pkg/auth"
	"github.com/arnavshah/study-planner-api/pkg/config"
	"github.com/arnavshah/study-planner-api/pkg/database"
	"github.com/arnavshah/study-planner-api/pkg/handlers"
	"github.com/arnavshah/study-planner-api/pkg/logging"
	"github.com/arnavshah/study-planner-api/pkg/metrics"
	"github.com/arnavshah/study-planner-api/pkg/scheduler"
)

var r http.Handler

func init() {
	// Load .env if it exists (for local testing with vercel dev)
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.Setup(cfg.Environment)

	db, err := database.InitDB(cfg.DatabaseURL, cfg.DataPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not open database")
	}
	if err := auth.EnsureAdminExists(db, cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
		logger.Error().Err(err).Msg("could not ensure admin user")
	}

	gin.SetMode(gin.ReleaseMode)
	r = handlers.NewRouter(&handlers.Handler{
		Store:                   database.NewStore(db),
		Auth:                    auth.New(cfg.JWTSecret, cfg.APIMasterSecret),
		Allocator:               scheduler.NewAllocator(scheduler.WithLogger(logger)),
		Metrics:                 metrics.NewRecorder(),
		Logger:                  logger,
		RecommendedDailyMinutes: cfg.RecommendedDailyMinutes,
		DefaultCycleType:        cfg.DefaultCycleType,
	})
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
