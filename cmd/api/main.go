package main

import (
	"context"
	"log"
	"net/http"

	"github.com/punchamoorthee/carconfig/internal/api"
	"github.com/punchamoorthee/carconfig/internal/catalog"
	"github.com/punchamoorthee/carconfig/internal/config"
	"github.com/punchamoorthee/carconfig/internal/estimation"
	"github.com/punchamoorthee/carconfig/internal/logging"
	"github.com/punchamoorthee/carconfig/internal/service"
	"github.com/punchamoorthee/carconfig/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Unable to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := store.NewStore(ctx, cfg.DBSource)
	if err != nil {
		logger.Fatal("Unable to connect to database", zap.Error(err))
	}
	defer db.Close()

	// The constraint graph is static seed data; load it once.
	accessories, err := db.ListAccessories(ctx)
	if err != nil {
		logger.Fatal("Unable to load accessories", zap.Error(err))
	}
	constraints, err := db.ListConstraints(ctx)
	if err != nil {
		logger.Fatal("Unable to load constraints", zap.Error(err))
	}
	graph, err := catalog.NewGraph(accessories, constraints)
	if err != nil {
		logger.Fatal("Invalid constraint data", zap.Error(err))
	}

	// Initialize Layers
	estimator := estimation.NewClient(cfg.EstimatorURL, cfg.EstimatorTimeout, cfg.EstimatorMaxRetries, logger)
	svc := service.NewConfigurationService(
		db,
		graph,
		catalog.DefaultCapacityPolicy(),
		store.NewConfigurations(db.Db),
		estimator,
		logger,
	)
	handler := api.NewHandler(svc, db, logger)
	r := api.NewRouter(handler, db, logger)

	logger.Info("Server starting",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("estimator", cfg.EstimatorURL),
		zap.Int("accessories", len(accessories)))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
