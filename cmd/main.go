package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"supportchat-ws/internal/auth"
	"supportchat-ws/internal/backbone"
	"supportchat-ws/internal/config"
	"supportchat-ws/internal/delivery"
	"supportchat-ws/internal/gateway"
	"supportchat-ws/internal/hub"
	"supportchat-ws/internal/infrastructure/kafka"
	redisstore "supportchat-ws/internal/infrastructure/redis"
	"supportchat-ws/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	zlog, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zlog.Sync()

	if cfg.JWTSecret == "" {
		zlog.Fatal("JWT_SECRET is required")
	}

	zlog.Info("starting support chat realtime gateway",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.String("redis", cfg.RedisAddr),
		zap.Strings("kafkaBrokers", cfg.KafkaBrokers))

	redisClient := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// An unreachable backbone is a degraded mode, not a startup failure:
	// the gateway keeps serving with local-only broadcast.
	var bb backbone.Backbone
	var presence *redisstore.Store
	if rb, err := backbone.NewRedisBackbone(redisClient, zlog); err != nil {
		zlog.Warn("redis backbone unreachable, falling back to local-only broadcast",
			zap.Error(err))
	} else {
		bb = rb
		presence = redisstore.NewStore(redisClient)
	}

	gw := gateway.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayTimeout)
	producer := kafka.NewProducer(cfg.KafkaBrokers)

	h := hub.New(hub.Options{
		Gateway:        gw,
		Backbone:       bb,
		Presence:       presence,
		Exporter:       producer,
		Logger:         zlog,
		GatewayTimeout: cfg.GatewayTimeout,
		SweepInterval:  cfg.SweepInterval,
	})
	h.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, h, zlog)
	consumer.Start(ctx)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	server := delivery.NewServer(cfg, h, verifier, gw, presence, zlog)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Listen()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		zlog.Fatal("server error", zap.Error(err))
	case s := <-sig:
		zlog.Info("shutdown signal received", zap.String("signal", s.String()))
	}

	cancel()
	if err := server.Shutdown(); err != nil {
		zlog.Warn("server shutdown failed", zap.Error(err))
	}
	h.Shutdown()
	if err := consumer.Close(); err != nil {
		zlog.Warn("kafka consumer close failed", zap.Error(err))
	}
	if err := producer.Close(); err != nil {
		zlog.Warn("kafka producer close failed", zap.Error(err))
	}
	if bb != nil {
		if err := bb.Close(); err != nil {
			zlog.Warn("backbone close failed", zap.Error(err))
		}
	}
	if err := redisClient.Close(); err != nil {
		zlog.Warn("redis close failed", zap.Error(err))
	}
	zlog.Info("shutdown complete")
}
