package main

import (
	"log"
	"net/http"

	"github.com/punchamoorthee/carconfig/internal/config"
	"github.com/punchamoorthee/carconfig/internal/estimation"
	"github.com/punchamoorthee/carconfig/internal/logging"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadEstimator()

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Unable to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Estimation server starting", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, estimation.NewServer(estimation.NewCalculator(nil), logger)); err != nil {
		logger.Fatal("Estimation server stopped", zap.Error(err))
	}
}
