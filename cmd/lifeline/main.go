package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifeline/internal/api"
	"lifeline/internal/bootstrap"
	"lifeline/pkg/clock"
	"lifeline/pkg/config"
	"lifeline/pkg/server"

	"go.uber.org/zap"
)

func main() {
	// 1. Load config
	bootstrap.LoadEnv()
	cfg, err := config.Load(os.Getenv("LIFELINE_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	l, err := bootstrap.Logger(cfg, "")
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer l.Sync()

	l.Info("lifeline initializing", zap.String("env", cfg.Environment), zap.String("store", cfg.Store))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the record store
	c := clock.System{}
	st, err := bootstrap.OpenStore(ctx, cfg, c)
	if err != nil {
		l.Error("failed to open record store", err)
		os.Exit(1)
	}

	// 4. Wire services
	svc := bootstrap.NewServices(cfg, st, c, l)

	// 5. Start observability server
	obsServer := server.New(cfg.MetricsAddr, l, svc.Checks)
	go func() {
		if err := obsServer.Start(); err != nil {
			l.Error("observability server failed", err)
		}
	}()

	// 6. Start API
	apiServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewHandler(svc.Players, svc.Rankings, l),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info("api listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("api server failed", err)
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("lifeline stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		l.Error("api shutdown failed", err)
	}
	obsServer.Shutdown(shutdownCtx)
	if err := svc.Close(shutdownCtx); err != nil {
		l.Error("failed to release dependencies", err)
	}
}
