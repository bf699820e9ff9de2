package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peercall/signaling/config"
	"github.com/peercall/signaling/internal/handlers"
	"github.com/peercall/signaling/internal/redis"
	"github.com/peercall/signaling/internal/relay"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	cfg := config.Load()

	if err := redis.Connect(cfg.Redis); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redis.Close()
	if redis.Enabled() {
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Presence mirror enabled")
	} else {
		log.Info().Msg("Presence mirror disabled (no REDIS_ADDR)")
	}

	r := relay.New(relay.Options{
		LivenessTimeout: cfg.LivenessTimeout,
		OnEvict:         redis.MirrorLeave,
	})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := handlers.NewHandler(r, cfg.JWTSecret)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/endpoints", h.ListEndpoints)
	}

	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/signal", h.HandleSignaling)
	}

	// Periodic liveness sweep
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	if _, err := quartz.AddFunc(fmt.Sprintf("@every %s", cfg.SweepInterval), func() {
		if evicted := r.Sweep(); len(evicted) > 0 {
			log.Info().Strs("endpoint_ids", evicted).Msg("Sweep evicted silent endpoints")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule liveness sweep")
	}
	quartz.Start()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting signaling relay")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down signaling relay")
	quartz.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}
