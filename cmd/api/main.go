package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"hotelpms/internal/config"
	"hotelpms/internal/database"
	"hotelpms/internal/jobs"
	"hotelpms/internal/pkg/logging"
	"hotelpms/internal/queue"
	"hotelpms/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logWriter := logging.Setup(cfg.LogFile)
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	rdb := database.NewRedisClient(cfg.RedisURL)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	var publisher server.Publisher = queue.NewLogPublisher(logging.Printf)
	if cfg.RabbitMQURL != "" {
		p, err := queue.NewPublisher(cfg.RabbitMQURL, cfg.EventsExchange, logging.Printf)
		if err != nil {
			log.Printf("level=warn msg=\"rabbitmq unavailable, events go to the log\" err=%v", err)
		} else {
			defer func() { _ = p.Close() }()
			publisher = p
		}
	}

	app, err := server.New(server.Options{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Publisher: publisher,
		LogWriter: logWriter,
		Loggerf:   logging.Printf,
	})
	if err != nil {
		log.Fatalf("server init: %v", err)
	}

	if cfg.JobsEnabled {
		sched, err := jobs.New(jobs.Config{
			PromoRetryInterval: cfg.PromoRetryInterval,
			ReconcileInterval:  cfg.ReconcileInterval,
		}, app.Promos, app.Ledger, logging.Printf)
		if err != nil {
			log.Fatalf("scheduler init: %v", err)
		}
		sched.Start()
		defer func() {
			if err := sched.Shutdown(); err != nil {
				log.Printf("level=warn msg=\"scheduler shutdown\" err=%v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("level=info msg=\"http server listening\" addr=%s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error msg=\"http shutdown\" err=%v", err)
	}
}
