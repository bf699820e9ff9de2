package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string
	Environment     string
	AllowedOrigins  []string
	JWTSecret       string
	LivenessTimeout time.Duration
	SweepInterval   time.Duration
	Redis           RedisConfig
}

type RedisConfig struct {
	// Addr left empty disables the presence mirror entirely.
	Addr     string
	Password string
	DB       int
}

func Load() *Config {
	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("LIVENESS_TIMEOUT", "10s")
	v.SetDefault("SWEEP_INTERVAL", "10s")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.AutomaticEnv()

	return &Config{
		Port:            v.GetString("PORT"),
		Environment:     v.GetString("ENVIRONMENT"),
		AllowedOrigins:  strings.Split(v.GetString("ALLOWED_ORIGINS"), ","),
		JWTSecret:       v.GetString("JWT_SECRET"),
		LivenessTimeout: v.GetDuration("LIVENESS_TIMEOUT"),
		SweepInterval:   v.GetDuration("SWEEP_INTERVAL"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
	}
}
