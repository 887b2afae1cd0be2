// Package resolver maps remote IPs to reverse-DNS domains and caches every
// outcome, including failures.
package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// State is the outcome of resolving one IP.
type State int

const (
	// Resolved means the IP has a reverse record.
	Resolved State = iota
	// Unknown means the IP has no reverse record.
	Unknown
	// Error means the lookup failed for any other reason.
	Error
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Unknown:
		return "unknown"
	case Error:
		return "error"
	default:
		return "invalid"
	}
}

// Sentinel domains stored for failed lookups.
const (
	UnknownDomain = "Unknown"
	ErrorDomain   = "Error"
)

const (
	// DefaultConcurrency caps simultaneous lookups in ResolveMany.
	DefaultConcurrency = 30
	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 2 * time.Second
)

// Result is a cached resolution.
type Result struct {
	Domain string
	State  State
}

// Config configures a Resolver.
type Config struct {
	Timeout     time.Duration
	Concurrency int
}

// BatchStats describes one ResolveMany call.
type BatchStats struct {
	// Requested is the number of distinct IPs passed in.
	Requested int
	// Hits were already cached and not looked up.
	Hits int
	// Dispatched lookups ran in this call.
	Dispatched int
}

// Resolver resolves IPs through a Lookuper and memoizes the results in a
// Store. It is safe for concurrent use.
type Resolver struct {
	lookuper    Lookuper
	store       Store
	timeout     time.Duration
	concurrency int
	logger      zerolog.Logger

	// backend is held for the whole LookupAddr call, including any time it
	// keeps running after its lookup has timed out.
	backend *semaphore.Weighted

	lookups  atomic.Int64
	resolved atomic.Int64
	unknown  atomic.Int64
	failed   atomic.Int64
}

// New creates a Resolver. Zero Config values fall back to the defaults.
func New(lookuper Lookuper, store Store, cfg Config, logger zerolog.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if store == nil {
		store = NewMapStore()
	}

	return &Resolver{
		lookuper:    lookuper,
		store:       store,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		logger:      logger.With().Str("component", "resolver").Logger(),
		backend:     semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
}

// Lookup returns the cached result for ip without performing any I/O.
func (r *Resolver) Lookup(ip string) (Result, bool) {
	return r.store.Get(ip)
}

// Resolve returns the cached result for ip, looking it up on a miss.
func (r *Resolver) Resolve(ctx context.Context, ip string) Result {
	if res, ok := r.store.Get(ip); ok {
		return res
	}
	return r.lookup(ctx, ip)
}

// ResolveMany looks up every uncached IP in ips with at most Concurrency
// lookups in flight, and returns once all of them have completed.
func (r *Resolver) ResolveMany(ctx context.Context, ips []string) BatchStats {
	var stats BatchStats

	seen := make(map[string]struct{}, len(ips))
	misses := make([]string, 0, len(ips))
	for _, ip := range ips {
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}
		stats.Requested++

		if _, ok := r.store.Get(ip); ok {
			stats.Hits++
			continue
		}
		misses = append(misses, ip)
	}

	if len(misses) == 0 {
		return stats
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, ip := range misses {
		ip := ip
		g.Go(func() error {
			r.lookup(ctx, ip)
			return nil
		})
	}
	_ = g.Wait()

	stats.Dispatched = len(misses)
	r.logger.Debug().
		Int("requested", stats.Requested).
		Int("hits", stats.Hits).
		Int("dispatched", stats.Dispatched).
		Msg("Resolved batch")

	return stats
}

// Stats returns lifetime counters.
func (r *Resolver) Stats() map[string]int64 {
	return map[string]int64{
		"lookups":  r.lookups.Load(),
		"resolved": r.resolved.Load(),
		"unknown":  r.unknown.Load(),
		"errors":   r.failed.Load(),
		"ips":      int64(r.store.Len()),
	}
}

type answer struct {
	name string
	err  error
}

// lookup performs one bounded lookup and stores its outcome.
func (r *Resolver) lookup(ctx context.Context, ip string) Result {
	r.lookups.Add(1)

	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var a answer
	if err := r.backend.Acquire(lctx, 1); err != nil {
		// No backend slot freed up before the deadline.
		a.err = err
	} else {
		// The select keeps a backend that ignores ctx from holding up the
		// batch; its slot is released only when the call really returns.
		ch := make(chan answer, 1)
		go func() {
			defer r.backend.Release(1)
			name, err := r.lookuper.LookupAddr(lctx, ip)
			ch <- answer{name: name, err: err}
		}()

		select {
		case a = <-ch:
		case <-lctx.Done():
			a.err = lctx.Err()
		}
	}

	var res Result
	switch {
	case a.err == nil && a.name != "":
		res = Result{Domain: a.name, State: Resolved}
		r.resolved.Add(1)
	case a.err == nil, errors.Is(a.err, ErrNoRecord):
		res = Result{Domain: UnknownDomain, State: Unknown}
		r.unknown.Add(1)
	default:
		res = Result{Domain: ErrorDomain, State: Error}
		r.failed.Add(1)
		r.logger.Debug().Err(a.err).Str("ip", ip).Msg("Reverse lookup failed")
	}

	r.store.Set(ip, res)
	return res
}
