package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBSource string
	Port     string
	Env      string
	LogLevel string

	EstimatorURL        string
	EstimatorTimeout    time.Duration
	EstimatorMaxRetries uint
}

// EstimatorConfig is what the estimation server reads. It needs no database.
type EstimatorConfig struct {
	Port     string
	Env      string
	LogLevel string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ESTIMATOR_URL", "http://localhost:3002")
	v.SetDefault("ESTIMATOR_PORT", "3002")
	v.SetDefault("ESTIMATOR_TIMEOUT", "2s")
	v.SetDefault("ESTIMATOR_MAX_RETRIES", 3)
	return v
}

func Load() (*Config, error) {
	v := newViper()

	dbSource := v.GetString("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	timeout := v.GetDuration("ESTIMATOR_TIMEOUT")
	if timeout <= 0 {
		return nil, fmt.Errorf("ESTIMATOR_TIMEOUT must be a positive duration, got %q", v.GetString("ESTIMATOR_TIMEOUT"))
	}

	return &Config{
		DBSource:            dbSource,
		Port:                v.GetString("SERVER_PORT"),
		Env:                 v.GetString("ENVIRONMENT"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		EstimatorURL:        v.GetString("ESTIMATOR_URL"),
		EstimatorTimeout:    timeout,
		EstimatorMaxRetries: v.GetUint("ESTIMATOR_MAX_RETRIES"),
	}, nil
}

func LoadEstimator() *EstimatorConfig {
	v := newViper()
	return &EstimatorConfig{
		Port:     v.GetString("ESTIMATOR_PORT"),
		Env:      v.GetString("ENVIRONMENT"),
		LogLevel: v.GetString("LOG_LEVEL"),
	}
}
