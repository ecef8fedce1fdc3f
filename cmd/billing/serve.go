package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/invoice/listener"
	"github.com/fekuna/omnipos-billing-service/pkg/broker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func serveCmd(e *env) *cobra.Command {
	var expireEvery time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sale listener, health server and metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), e, expireEvery)
		},
	}
	cmd.Flags().DurationVar(&expireEvery, "expire-interval", time.Minute, "How often stale reservations are released (0 disables)")
	return cmd
}

func serve(parent context.Context, e *env, expireEvery time.Duration) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := e.logger

	// Sockets are bound before any resource is opened or goroutine started.
	port := grpcAddr(e.cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", port)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", port, err)
	}
	defer lis.Close()
	metricsLis, err := net.Listen("tcp", e.cfg.Server.MetricsAddr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", e.cfg.Server.MetricsAddr, err)
	}
	defer metricsLis.Close()

	a, err := newApp(ctx, e.cfg, log, appOptions{events: true})
	if err != nil {
		log.Fatal("Could not initialize application", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("Failed to close resources", zap.Error(err))
		}
	}()

	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: e.cfg.Kafka.Brokers,
		Topic:   e.cfg.Kafka.SalesTopic,
		GroupID: e.cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()
	log.Info("Connected to Kafka Consumer",
		zap.Strings("brokers", e.cfg.Kafka.Brokers),
		zap.String("topic", e.cfg.Kafka.SalesTopic),
	)

	var wg sync.WaitGroup
	saleListener := listener.NewSaleListener(kafkaConsumer, a.invoices, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		saleListener.Start(ctx)
	}()

	if expireEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runExpiry(ctx, a, expireEvery)
		}()
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Starting gRPC server", zap.String("port", port))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server stopped", zap.Error(err))
			stop()
		}
	}()
	go func() {
		log.Info("Starting metrics server", zap.String("addr", metricsLis.Addr().String()))
		if err := metricsServer.Serve(metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Metrics server shutdown", zap.Error(err))
	}

	wg.Wait()
	log.Info("Server stopped")
	return nil
}

func grpcAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func runExpiry(ctx context.Context, a *app, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.reservations.ExpireStale(ctx)
			if err != nil && ctx.Err() == nil {
				a.logger.Error("Failed to expire reservations", zap.Error(err))
			}
			if n > 0 {
				a.logger.Info("Expired stale reservations", zap.Int("count", n))
			}
		}
	}
}
