// Closes open external connections before shutting down Dropzone.
// Inspired from https://medium.com/tokopedia-engineering/gracefully-shutdown-your-go-application-9e7d5c73b5ac

package cleanup

import (
	"Dropzone/pkg/log"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Operation is a clean up function standard.
type Operation func(ctx context.Context) error

// Step is a named Operation, steps run one after the other in the given order.
type Step struct {
	Name string
	Op   Operation
}

// Exit code used when the clean up outlives its timeout.
const forcedExitCode = 3

// Replaced in tests.
var forceExit = os.Exit

// Signals which trigger a graceful shutdown.
var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// GracefulShutdown waits for a termination system-call (or for ctx to be done) and performs
// the clean-up steps. The returned channel is closed once every step ran.
func GracefulShutdown(ctx context.Context, logger log.Logger, timeout time.Duration, steps []Step) <-chan struct{} {
	wait := make(chan struct{})

	// buffered channel to receive shutdown signal
	s := make(chan os.Signal, 1)
	signal.Notify(s, shutdownSignals...)

	go func() {
		defer close(wait)
		defer signal.Stop(s)

		select {
		case sig := <-s:
			logger.Warn().Msgf("Received %s, graceful shutdown in progress.", sig)
		case <-ctx.Done():
			logger.Warn().Msg("Graceful shutdown in progress.")
		}
		if err := Shutdown(context.WithoutCancel(ctx), logger, timeout, steps); err != nil {
			logger.Error().Err(err).Msg("Shutdown completed with errors")
		}
	}()

	return wait
}

// Shutdown runs steps in order, all of them sharing timeout. A failing step doesn't
// prevent the next ones from running. The process is forced to exit when the timeout
// elapses before the last step returns.
func Shutdown(ctx context.Context, logger log.Logger, timeout time.Duration, steps []Step) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Force exit after timeout duration has been elapsed
	force := time.AfterFunc(timeout, func() {
		logger.Warn().Msgf("Timeout of %.1fs has been elapsed. Forcing shutdown!", timeout.Seconds())
		forceExit(forcedExitCode)
	})
	defer force.Stop()

	var errs []error
	for _, step := range steps {
		logger.Info().Msgf("Shutting down: %s", step.Name)
		if err := step.Op(ctx); err != nil {
			logger.Error().Err(err).Msgf("Error occured while shutting down %s", step.Name)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		logger.Info().Msgf("%s shutdown completed.", step.Name)
	}
	return errors.Join(errs...)
}
