package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-image-worsen/internal/config"
	"go-image-worsen/internal/container"
	apperrors "go-image-worsen/internal/errors"
	"go-image-worsen/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(opts *options) *cobra.Command {
	var (
		host string
		port string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the worsen HTTP API",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(opts.operations) == 0 && len(args) > 0 {
				return apperrors.NewValidationError("serve takes no arguments", nil)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// "worsen -o OP serve ..." names an input file, not the subcommand
			if len(opts.operations) > 0 {
				return runWorsen(cmd, opts, append([]string{cmd.Name()}, args...))
			}

			cfg, err := config.LoadFromEnv()
			if err != nil {
				return apperrors.NewConfigurationError("failed to load config", err)
			}
			applyFlags(cmd, opts, cfg)
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from HOST)")
	cmd.Flags().StringVar(&port, "port", "", "listen port (default from PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger.UseJSON(os.Stdout)
	gin.SetMode(gin.ReleaseMode)

	// Initialize dependency injection container
	c, err := container.NewContainer(cfg)
	if err != nil {
		return apperrors.NewConfigurationError("failed to initialize container", err)
	}
	defer c.Close()

	// Create HTTP server with configurable timeouts
	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"address": cfg.ServerAddress(),
			"timeout": cfg.RequestTimeout,
			"workers": cfg.Workers,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-serverErr:
		if ok {
			return apperrors.NewInternalError("failed to start server", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return apperrors.NewInternalError("server forced to shutdown", err)
	}

	logger.Info("Server exited")
	return nil
}
