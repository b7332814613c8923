package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"hotelpms/internal/config"
	"hotelpms/internal/pkg/logging"
	"hotelpms/internal/queue"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.LogFile)
	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required")
	}

	out := logging.RotatingFile(cfg.EventLogFile)
	defer func() { _ = out.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.EventsExchange, out, logging.Printf)
	log.Printf("level=info msg=\"event log consumer started\" exchange=%s file=%s", cfg.EventsExchange, cfg.EventLogFile)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("event consumer: %v", err)
	}
	log.Println("event log consumer stopped")
}
