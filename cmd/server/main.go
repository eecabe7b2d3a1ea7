package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"prompter/internal/metrics"
	"prompter/internal/presence"
	"prompter/internal/routers"
	"prompter/internal/session"
	"prompter/internal/utils"
)

var (
	defaultRedisAddr = "redis:6379"
	defaultPort      = "8080"

	// seams for tests
	listenAndServe = http.ListenAndServe
	exit           = os.Exit
	exitFunc       = defaultExit
)

func defaultExit(err error) {
	log.Printf("prompter: %v", err)
	exit(1)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		exitFunc(err)
	}
}

func run(ctx context.Context) error {
	logger := utils.NewLogger()

	registry := session.NewRegistry()

	redisAddr := envOr("REDIS_ADDR", defaultRedisAddr)
	publisher := presence.NewPublisher(redisAddr, logger)
	defer publisher.Close()

	// Background eviction of idle rooms, stopped with the process context.
	interval := durationEnv("SWEEP_INTERVAL", session.DefaultSweepInterval)
	ttl := durationEnv("ROOM_TTL", session.DefaultRoomTTL)
	sweeper := session.NewSweeper(registry, interval, ttl, logger, publisher)
	go sweeper.Run(ctx)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)
	r.Use(metrics.Middleware)

	r.Mount("/", routers.New(logger, registry, publisher))

	r.Get("/healthz", healthHandler)

	addr := ":" + envOr("PORT", defaultPort)
	log.Printf("prompter listening on %s", addr)
	return listenAndServe(addr, r)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
