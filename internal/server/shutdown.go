package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Serve runs every server until ctx is cancelled or one of them fails, then
// shuts them all down with a bounded grace period.
func Serve(ctx context.Context, logger *zap.Logger, servers ...*http.Server) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("Server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", zap.String("addr", srv.Addr), zap.Error(err))
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	logger.Info("Server exiting")
	return err
}
