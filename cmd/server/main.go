package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logipay/internal/config"
	"logipay/internal/handler"
	"logipay/internal/infrastructure/cache"
	"logipay/internal/infrastructure/database"
	"logipay/internal/infrastructure/mq"
	"logipay/internal/job"
	"logipay/internal/rates"
	"logipay/pkg/idgen"
	"logipay/pkg/logging"
)

func main() {
	cfg := config.LoadConfig("config/config.yaml")
	logger := logging.NewLogger()

	idgen.Init(1)

	db := database.InitMySQL(&cfg.MySQL)
	rdb := cache.InitRedis(&cfg.Redis)
	producer := mq.InitKafka(&cfg.Kafka)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := job.NewOutboxSender(db, producer, cfg, logger)
	go sender.Start(ctx)

	rateCalc := rates.NewClient(&cfg.Rates)

	router := handler.SetupRouter(db, rdb, cfg, rateCalc, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("forced shutdown")
	}

	logger.Info("server exited")
}
