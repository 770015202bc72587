package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/auth"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/clients"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/consul"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/orders"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/orders/handlers"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/stores/kafka"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/stores/postgres"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

const serviceName = "orders"

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

	keys, err := auth.NewKeys(os.Getenv("JWT_SECRET"))
	if err != nil {
		return err
	}

	db, err := postgres.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.RunMigrations(db); err != nil {
		return err
	}

	host := getenv("SERVICE_HOST", "localhost")
	port := getenvInt("APP_PORT", 8082)

	consulClient, err := consul.NewClient()
	if err != nil {
		return err
	}
	serviceID := fmt.Sprintf("%s-%s", serviceName, uuid.NewString())
	if err := consul.RegisterService(consulClient, serviceName, serviceID, host, port); err != nil {
		return err
	}

	brokers := getenv("KAFKA_BROKERS", "localhost:9092")
	producer, err := kafka.NewConf(brokers)
	if err != nil {
		return err
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumer(brokers, kafka.GroupOrderService, kafka.TopicCartCheckout)
	if err != nil {
		return err
	}
	defer consumer.Close()

	// Token used against the collaborators' authenticated endpoints. Signed
	// with the shared secret, so it verifies everywhere.
	serviceToken, err := keys.GenerateToken(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   serviceID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
		},
		Roles: []string{auth.RoleAdmin},
	})
	if err != nil {
		return err
	}

	store, err := orders.NewConf(db)
	if err != nil {
		return err
	}
	productClient := clients.NewProductClient(consulClient, serviceToken)
	cartClient := clients.NewCartClient(consulClient)
	userClient := clients.NewUserClient(consulClient, serviceToken)

	svc := orders.NewService(store, productClient, cartClient, userClient, producer)

	router := handlers.API("/orders", keys, svc)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("consuming cart checkout events", slog.String(logkey.Topic, kafka.TopicCartCheckout))
		consumer.Consume(ctx, func(ctx context.Context, key, value []byte) error {
			return svc.HandleCartCheckout(ctx, value)
		})
	}()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("order service listening", slog.Int("port", port))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down", slog.String(logkey.Service, serviceName))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server shutdown failed", slog.String(logkey.ERROR, err.Error()))
	}
	wg.Wait()
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
