package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"larkticket/api"
	"larkticket/internal/infra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务，队列模式下同时启动 worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, l, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Info("应用启动中...",
		zap.String("env", opts.env),
		zap.String("mode", cfg.Server.Mode),
		zap.String("dispatch_mode", cfg.Dispatch.Mode),
	)

	db, err := infra.InitDatabase(&cfg.Database, l)
	if err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	defer infra.CloseDatabase(db)

	container, err := api.InitContainer(ctx, db, cfg, l)
	if err != nil {
		return err
	}

	if err := container.AutoMigrate(ctx); err != nil {
		container.Close(context.Background())
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.SetupRouter(container),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务器异常退出: %w", err)
		}
		return nil
	})

	if ws := container.WorkerServer; ws != nil {
		g.Go(func() error {
			if err := ws.Start(); err != nil {
				return fmt.Errorf("Worker 服务器启动失败: %w", err)
			}
			<-gctx.Done()
			ws.Shutdown()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		l.Info("正在关闭服务器...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP 服务器关闭异常: %w", err))
		}
		if err := container.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		l.Error("服务退出", zap.Error(err))
		return err
	}
	l.Info("服务器已安全关闭")
	return nil
}
