package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/angeloszaimis/cat-facts/config"
	"github.com/angeloszaimis/cat-facts/internal/handler"
	"github.com/angeloszaimis/cat-facts/internal/metrics"
)

func setupRouter(cfg *config.Config, log *slog.Logger, factHandler *handler.FactHandler, imageHandler *handler.ImageHandler, metricsCollector *metrics.Collector) *gin.Engine {
	if cfg.Server.Environment == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		handler.RequestID(),
		handler.Recovery(log),
		handler.RequestLogger(log),
		handler.Metrics(metricsCollector),
	)

	// Middleware must be attached before any route is registered
	if cfg.CORS.Enabled() {
		router.Use(handler.CORS(cfg.CORS.AllowedOrigins))
	}

	router.GET("/", handler.Index)
	router.GET("/healthz", handler.Health)
	router.GET("/fact", factHandler.Get)
	router.GET("/catimg", imageHandler.Get)
	router.GET("/metrics", gin.WrapF(metricsCollector.Handler()))

	return router
}
