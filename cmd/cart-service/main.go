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

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/auth"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/cart"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/cart/handlers"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/clients"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/consul"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/stores/kafka"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/stores/postgres"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

const serviceName = "cart"

// Expired carts are swept on this cadence.
const sweepInterval = time.Hour

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
	port := getenvInt("APP_PORT", 8081)

	consulClient, err := consul.NewClient()
	if err != nil {
		return err
	}
	serviceID := fmt.Sprintf("%s-%s", serviceName, uuid.NewString())
	if err := consul.RegisterService(consulClient, serviceName, serviceID, host, port); err != nil {
		return err
	}

	producer, err := kafka.NewConf(getenv("KAFKA_BROKERS", "localhost:9092"))
	if err != nil {
		return err
	}
	defer producer.Close()

	store, err := cart.NewConf(db)
	if err != nil {
		return err
	}
	productClient := clients.NewProductClient(consulClient, "")
	svc := cart.NewService(store, productClient, producer)

	router := handlers.API("/cart", keys, svc)

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
		svc.SweepExpired(ctx, sweepInterval)
	}()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("cart service listening", slog.Int("port", port))
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
