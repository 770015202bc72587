package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/notifications"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/stores/kafka"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

const serviceName = "notifications"

func main() {
	if err := run(); err != nil {
		slog.Error("service stopped", slog.String(logkey.Service, serviceName),
			slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func run() error {
	godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	mailer, err := notifications.NewMailerFromEnv()
	if err != nil {
		return err
	}

	consumer, err := kafka.NewConsumer(
		getenv("KAFKA_BROKERS", "localhost:9092"),
		kafka.GroupNotificationService,
		kafka.TopicOrderPlaced,
	)
	if err != nil {
		return err
	}
	defer consumer.Close()

	svc := notifications.NewService(mailer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("consuming order placed events", slog.String(logkey.Topic, kafka.TopicOrderPlaced))
	consumer.Consume(ctx, func(ctx context.Context, key, value []byte) error {
		return svc.HandleOrderPlaced(ctx, value)
	})

	slog.Info("shutting down", slog.String(logkey.Service, serviceName))
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
