// Package poller runs a scan on a fixed interval until stopped or until a
// scan fails.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scanner defines the work done on every tick.
type Scanner interface {
	// ScanOnce performs a single cycle. A returned error ends the loop.
	ScanOnce(ctx context.Context) error
}

// ScannerFunc adapts a function to Scanner.
type ScannerFunc func(ctx context.Context) error

// ScanOnce implements Scanner.
func (f ScannerFunc) ScanOnce(ctx context.Context) error { return f(ctx) }

// Config contains configuration for a poller.
type Config struct {
	// Name is the poller name for logging (e.g., "watch").
	Name string

	// Interval is the time between the starts of two cycles.
	Interval time.Duration

	// Logger is the logger to use for this poller.
	Logger zerolog.Logger
}

// BasePoller manages the scan loop and its lifecycle.
type BasePoller struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	running  bool
	mu       sync.Mutex
	interval time.Duration
	logger   zerolog.Logger
	name     string

	errMu sync.Mutex
	err   error
}

// NewBasePoller creates a new base poller.
// The parent context is used for lifecycle management.
func NewBasePoller(parentCtx context.Context, config Config) *BasePoller {
	ctx, cancel := context.WithCancel(parentCtx)

	return &BasePoller{
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		interval: config.Interval,
		logger:   config.Logger.With().Str("poller", config.Name).Logger(),
		name:     config.Name,
	}
}

// Start begins the scan loop in a separate goroutine.
func (b *BasePoller) Start(scanner Scanner) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	b.logger.Debug().
		Dur("interval", b.interval).
		Msg("Starting poller")

	b.wg.Add(1)
	go b.loop(scanner)

	b.running = true
	return nil
}

// Stop stops the scan loop and waits for it to finish.
func (b *BasePoller) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}

	b.logger.Debug().Msg("Stopping poller")

	b.cancel()
	b.wg.Wait()

	b.running = false
	return nil
}

// IsRunning returns whether the loop is still scheduling scans.
func (b *BasePoller) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return false
	}
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the loop exits and returns the scan error that ended
// it, or nil when it was stopped or its context was cancelled.
func (b *BasePoller) Wait() error {
	<-b.done
	return b.Err()
}

// Err returns the scan error that ended the loop, if any.
func (b *BasePoller) Err() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.err
}

// loop runs a scan immediately, then on every tick.
func (b *BasePoller) loop(scanner Scanner) {
	defer b.wg.Done()
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	if !b.scan(scanner) {
		return
	}

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if !b.scan(scanner) {
				return
			}
		}
	}
}

func (b *BasePoller) scan(scanner Scanner) bool {
	err := scanner.ScanOnce(b.ctx)
	if err == nil {
		return true
	}
	if b.ctx.Err() != nil {
		// Cancelled mid-scan; not a failure.
		return false
	}

	b.logger.Error().Err(err).Msg("Scan failed, stopping poller")
	b.errMu.Lock()
	b.err = err
	b.errMu.Unlock()
	return false
}
