package main

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tcm-backend/config"
	"tcm-backend/conn"
	"tcm-backend/inquiry"
	"tcm-backend/inspection"
	"tcm-backend/listening"
	"tcm-backend/logger"
	"tcm-backend/migrations"
	"tcm-backend/notifications"
	"tcm-backend/openai"
	"tcm-backend/pipeline"
	"tcm-backend/prompts"
	"tcm-backend/pulse"
	"tcm-backend/report"
	"tcm-backend/sessions"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Configuration errors are fatal; the pipeline never runs
		// without credentials.
		panic(err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	// The store is a collaborator, not a dependency: when Supabase is
	// unreachable the AI endpoints still serve, without persistence.
	var db *sql.DB
	if db, err = conn.NewPostgres(cfg.Database); err != nil {
		log.Warn("postgres unavailable, persistence disabled", zap.Error(err))
		db = nil
	} else {
		migrations.Init(db)
		if err := migrations.Migrate(); err != nil {
			log.Error("migrate failed", zap.Error(err))
		}
		if err := migrations.SeedDefaultPrompts(prompts.Defaults()); err != nil {
			log.Error("prompt seed failed", zap.Error(err))
		}
	}

	ai := openai.NewClient(cfg.AI.APIKey)
	selector := pipeline.NewSelector(cfg.AI)
	validator := pipeline.NewValidator(cfg.AI.MinConfidence)
	pipe := pipeline.New(ai, validator, log, pipeline.RetryPolicy{
		BaseDelay:  cfg.AI.RetryBaseDelay,
		Multiplier: cfg.AI.RetryMultiplier,
		MaxDelay:   cfg.AI.RetryMaxDelay,
	})

	promptRepo := prompts.NewRepository(db)
	var store *sessions.Repository
	var notify *notifications.Repository
	if db != nil {
		store = sessions.NewRepository(db)
		notify = notifications.NewRepository(db)
	}

	r := gin.Default()
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	inquiry.NewHandler(pipe, selector, promptRepo, store, notify, cfg.AI).RegisterRoutes(r)
	inspection.NewHandler(pipe, selector, promptRepo, store, notify, cfg.AI).RegisterRoutes(r)
	listening.NewHandler(pipe, ai, selector, promptRepo, store, notify, cfg.AI).RegisterRoutes(r)
	pulse.NewHandler(pipe, selector, promptRepo, store, notify, cfg.AI).RegisterRoutes(r)
	report.NewHandler(pipe, selector, promptRepo, store, notify, cfg.AI).RegisterRoutes(r)

	log.Info("listening", zap.String("port", cfg.App.Port))
	if err := r.Run(":" + cfg.App.Port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
