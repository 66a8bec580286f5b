package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务（网关回调、用户与管理接口）",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openStore(); err != nil {
		return err
	}
	if err := a.openRedis(); err != nil {
		return err
	}
	if err := a.openProducer(); err != nil {
		return err
	}

	reconciler, err := a.reconciler()
	if err != nil {
		return err
	}
	cfg := a.cfg
	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.ServerKey, cfg.Gateway.Timeout)

	h := handler.NewHandler(
		reconciler,
		service.NewOrderService(a.store, cfg.Kafka.Topic, a.log.Named("order")),
		service.NewUserService(a.store, cfg.Business.ReferralCodePrefix, cfg.Business.ReferrerRate(), a.log.Named("user")),
		service.NewReviewService(a.store, gw, a.log.Named("review")),
		a.log,
	)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.producer != nil {
		relay := a.relay()
		go relay.Start(ctx)
		defer relay.Stop()
	} else {
		a.log.Warn("kafka disabled, outbox messages stay pending")
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.SetupRouter(h, cfg, a.log),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server started", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	a.log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server shutdown", zap.Error(err))
	}

	a.log.Info("server stopped")
	return nil
}
