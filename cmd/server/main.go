package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"gopay-checkout/internal/auth"
	"gopay-checkout/internal/config"
	"gopay-checkout/internal/db"
	"gopay-checkout/internal/logger"
	"gopay-checkout/internal/metrics"
	"gopay-checkout/internal/middleware"
	"gopay-checkout/internal/payment"
	"gopay-checkout/internal/payment/webhook"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const notifyPath = "/payments/notify"

var (
	initDBFunc      = db.InitDB
	startServerFunc = func(addr string, handler http.Handler) error {
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
		}
		return srv.ListenAndServe()
	}
	redisClientFunc = func(cfg *config.Config) (*redis.Client, error) {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return client, nil
	}
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	if err := cfg.ValidateGoPay(); err != nil {
		return err
	}

	database := initDBFunc(cfg)
	defer database.Close()

	router, err := newServer(cfg, database)
	if err != nil {
		return err
	}

	logger.L().Info("checkout server running",
		zap.String("port", cfg.AppPort),
		zap.Bool("gopay_production", cfg.GoPayProduction),
	)
	return startServerFunc(":"+cfg.AppPort, router)
}

func newServer(cfg *config.Config, database *sql.DB) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewMetrics()
	if err := paymentMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	var locker payment.SessionLocker
	if cfg.RedisAddr != "" {
		client, err := redisClientFunc(cfg)
		if err != nil {
			return nil, err
		}
		locker = payment.NewRedisLocker(client, cfg.RedisLockTTL)
	}

	paymentRepo := payment.NewRepository(database)
	tokens, err := auth.NewNotifyTokens(
		cfg.NotifyTokenSecret,
		cfg.NotifyTokenTTL,
		cfg.PublicBaseURL+notifyPath,
		auth.NewTokenRepository(database),
	)
	if err != nil {
		return nil, err
	}

	paymentSvc := payment.NewService(
		payment.Config{
			Credentials: payment.Credentials{
				GoID:           cfg.GoPayGoID,
				ClientID:       cfg.GoPayClientID,
				ClientSecret:   cfg.GoPayClientSecret,
				ProductionMode: cfg.GoPayProduction,
			},
			FallbackLocale: cfg.GoPayDefaultLocale,
			Locker:         locker,
		},
		paymentRepo,
		payment.NewGoPayGateway(),
		tokens,
		paymentMetrics,
	)

	checkoutHandler := payment.NewHandler(paymentSvc)
	webhookHandler := webhook.NewWebhookHandler(paymentSvc, tokens, paymentRepo)
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	return setupRouter(checkoutHandler, webhookHandler.NotifyHandler, metricsHandler), nil
}

func setupRouter(checkout *payment.Handler, notify http.HandlerFunc, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metricsHandler)

	// GoPay calls back with GET; POST is accepted for manual replays.
	mux.HandleFunc("GET "+notifyPath, notify)
	mux.HandleFunc("POST "+notifyPath, notify)

	checkout.Register(mux)

	var handler http.Handler = mux
	handler = middleware.RateLimitMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)
	return handler
}
