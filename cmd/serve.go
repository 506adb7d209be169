package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/server"
	"github.com/FACorreiaa/go-withbaby/pkg/logger"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	log := logger.L()
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	otelShutdown, err := server.InitObservability(cfg.ServiceName, cfg.MetricsAddr, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
			log.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer srv.Close()

	router, err := server.SetupRouter(srv, cfg, log)
	if err != nil {
		return err
	}
	srv.SetRouter(router)

	err = server.Serve(ctx, log, srv.HTTPServer(), server.PprofServer(cfg.PprofAddr))
	if err != nil {
		return err
	}
	log.Info("Graceful shutdown complete")
	return nil
}
