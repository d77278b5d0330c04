package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"
)

// DefaultTimeout bounds a whole graceful shutdown; tool cleanups run inside it.
const DefaultTimeout = 15 * time.Second

// Notify returns a channel that receives SIGTERM and SIGINT.
// Call it first in main so no signal is lost during initialization.
func Notify() <-chan os.Signal {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)

	return signals
}

// Handler turns process signals and the termination file into context cancellation.
type Handler struct {
	logger          *slog.Logger
	quiter          quiter
	terminationFile string
}

// New creates a shutdown handler. An empty terminationFile disables the file check.
func New(logger *slog.Logger, quiter quiter, terminationFile string) *Handler {
	return &Handler{
		logger:          logger.With("component", "signal-handler"),
		quiter:          quiter,
		terminationFile: terminationFile,
	}
}

// HandleSignals blocks until a signal arrives or ctx is done, then calls cancel.
func (h *Handler) HandleSignals(ctx context.Context, cancel func()) {
	select {
	case <-ctx.Done():
		h.logger.InfoContext(ctx, "terminating signal handler due to context done")

		return
	case sig := <-h.quiter.Quit():
		h.logger.InfoContext(ctx, "received termination signal", "signal", fmt.Sprint(sig))
	}

	cancel()
}

// CheckTermination refuses to start when the termination file already exists.
func (h *Handler) CheckTermination(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("termination context done before startup: %w", err)
	}

	if CheckTerminationFile(ctx, h.logger, h.terminationFile) {
		return fmt.Errorf("%w: %s exists", ErrTerminating, h.terminationFile)
	}

	return nil
}

// CheckTerminationFile reports whether path exists. Stat errors other than
// not-exist are logged and treated as absent.
func CheckTerminationFile(ctx context.Context, logger *slog.Logger, path string) bool {
	if path == "" {
		return false
	}

	_, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.ErrorContext(ctx, "error checking termination file", "reason", err, "path", path)
		}

		return false
	}

	logger.InfoContext(ctx, "termination file found", "path", path)

	return true
}

// GracefulShutdown shuts the components down in reverse registration order,
// so a component stops before the ones it was built on. It keeps going past
// failures and returns all of them joined.
func GracefulShutdown(
	originCtx context.Context,
	logger *slog.Logger,
	shutdowners []Shutdowner,
) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(originCtx), DefaultTimeout)
	defer cancel()

	var errs []error

	for _, s := range slices.Backward(shutdowners) {
		start := time.Now()
		name := s.Name()

		if err := s.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "component shutdown failed",
				"component", name,
				"duration", time.Since(start),
				"reason", err,
			)

			errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))

			continue
		}

		logger.InfoContext(ctx, "component shutdown completed",
			"component", name,
			"duration", time.Since(start),
		)
	}

	return errors.Join(errs...)
}
