package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarketRelay/internal/service/mirror"
	"MarketRelay/internal/service/ratelimit"
	"MarketRelay/internal/usecase"
	xhttp "MarketRelay/pkg/http"
	applogger "MarketRelay/pkg/logger"
)

const (
	limiterSweepEvery = time.Minute
	limiterIdle       = 10 * time.Minute
)

// App encapsulates the entire application lifecycle.
type App struct {
	logger     *applogger.Logger
	relay      *usecase.RelaySupervisor
	mirrors    []*mirror.Forwarder
	httpServer *xhttp.Server
	limiter    *ratelimit.Limiter

	stopSweep context.CancelFunc
}

// New creates a new App instance with all dependencies.
func New(
	l *applogger.Logger,
	relay *usecase.RelaySupervisor,
	mirrors []*mirror.Forwarder,
	httpServer *xhttp.Server,
	limiter *ratelimit.Limiter,
) *App {
	return &App{
		logger:     l,
		relay:      relay,
		mirrors:    mirrors,
		httpServer: httpServer,
		limiter:    limiter,
	}
}

// HTTP returns the HTTP server.
func (a *App) HTTP() *xhttp.Server { return a.httpServer }

// Relay returns the relay supervisor.
func (a *App) Relay() *usecase.RelaySupervisor { return a.relay }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start launches mirrors, the relay and the HTTP server. Mirrors subscribe
// first so they see the first relayed event.
func (a *App) Start(ctx context.Context) error {
	for _, m := range a.mirrors {
		if err := m.Start(ctx); err != nil {
			return err
		}
	}

	if err := a.relay.Start(ctx); err != nil {
		return err
	}

	if a.limiter != nil {
		sweepCtx, cancel := context.WithCancel(ctx)
		a.stopSweep = cancel
		go a.sweep(sweepCtx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

func (a *App) sweep(ctx context.Context) {
	t := time.NewTicker(limiterSweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(limiterIdle); n > 0 {
				a.logger.Debug("rate limiter swept", applogger.Int("keys", n))
			}
		}
	}
}

// Shutdown stops accepting subscribers, disconnects upstream, releases every
// session and finally flushes the mirrors.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")
	var errs []error

	if a.stopSweep != nil {
		a.stopSweep()
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	if err := a.relay.Shutdown(ctx); err != nil {
		a.logger.Warn("relay stop error", applogger.Error(err))
		errs = append(errs, err)
	}

	for _, m := range a.mirrors {
		if err := m.Stop(ctx); err != nil {
			a.logger.Warn("mirror stop error", applogger.String("mirror", m.Name()), applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
