package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Darkpool645/alex-backend/internal/auth"
	"github.com/Darkpool645/alex-backend/internal/billing"
	"github.com/Darkpool645/alex-backend/internal/clients"
	"github.com/Darkpool645/alex-backend/internal/config"
	"github.com/Darkpool645/alex-backend/internal/db"
	"github.com/Darkpool645/alex-backend/internal/exams"
	alexgrpc "github.com/Darkpool645/alex-backend/internal/grpc"
	internalhttp "github.com/Darkpool645/alex-backend/internal/http"
	"github.com/Darkpool645/alex-backend/internal/jobs"
	"github.com/Darkpool645/alex-backend/internal/logging"
	"github.com/Darkpool645/alex-backend/internal/metrics"
	"github.com/Darkpool645/alex-backend/internal/repository"
	"github.com/Darkpool645/alex-backend/internal/session"
)

func main() {
	cfg := config.Load()
	logger, logCloser := logging.Init(cfg)
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "db connection failed", err)
	}
	defer pool.Close()
	store := repository.NewStore(pool)

	rates, err := billing.LoadTable(cfg.BillingRatesFile)
	if err != nil {
		fatal(logger, "billing rates load failed", err)
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	if err != nil {
		fatal(logger, "token issuer init failed", err)
	}

	external, err := clients.New(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "client init failed", err)
	}
	defer external.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	sessions := session.NewService(store, issuer, external.Gateway, external.Notifier, rates, recorder, logger, session.Options{
		SubscriptionFee:    cfg.SubscriptionFee,
		SubscriptionMonths: cfg.SubscriptionMonths,
		CodeTTL:            cfg.VerificationCodeTTL,
		MaxAttempts:        cfg.MaxVerificationAttempts,
	})
	examService := exams.NewService(store, recorder, logger)

	server := internalhttp.NewServer(sessions, examService, issuer, store, registry, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := alexgrpc.NewServer(logger, cfg.GRPCServiceToken)
	jobs.StartHealthCheck(ctx, cfg.HealthCheckInterval, store, grpcServer, logger)

	go func() {
		logger.Info("http listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "http server error", err)
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			fatal(logger, "grpc listen error", err)
		}
		logger.Info("grpc listening", slog.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(listener); err != nil {
			fatal(logger, "grpc server error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}
	grpcServer.Stop(10 * time.Second)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
