package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asakaida/kanmon/internal/app"
	"github.com/asakaida/kanmon/internal/infrastructure/config"
	"github.com/asakaida/kanmon/internal/infrastructure/logging"
	"github.com/asakaida/kanmon/internal/infrastructure/ops"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultEnv            = "dev"
	shutdownTimeout       = 30 * time.Second
	metricsUpdateInterval = 15 * time.Second
)

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		logrus.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(&cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited with error")
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := app.OpenRegistry(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.WithError(err).Warn("error closing registry")
		}
	}()

	if err := registry.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cache invalidation: %w", err)
	}

	srv, err := app.NewServer(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}

	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}

	opsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           ops.NewRouter(srv.Exporter.Handler(), registry.ReadinessChecks()...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", grpcAddr).Info("gRPC server listening")
		if err := srv.GRPC.Serve(listener); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.WithField("addr", opsServer.Addr).Info("ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				srv.Exporter.Update()
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		srv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			srv.GRPC.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
			logger.Info("gRPC server stopped gracefully")
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timeout exceeded, forcing stop")
			srv.GRPC.Stop()
		}

		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("error stopping ops server")
		}
		return nil
	})

	return g.Wait()
}
