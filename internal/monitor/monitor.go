// Package monitor runs scan cycles: it fetches the established connections,
// resolves the remote IPs that are new since the previous cycle, and returns
// enriched records ordered by pid.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/netwatch/internal/netconn"
	"github.com/coral-mesh/netwatch/internal/resolver"
	"github.com/coral-mesh/netwatch/internal/snapshot"
)

// ErrFetchConnections marks a cycle aborted because the connection table
// could not be read.
var ErrFetchConnections = errors.New("failed to fetch connections")

// DomainCache resolves batches of IPs and serves cached results.
// *resolver.Resolver implements it.
type DomainCache interface {
	ResolveMany(ctx context.Context, ips []string) resolver.BatchStats
	Lookup(ip string) (resolver.Result, bool)
}

// ProcessNames maps pids to display names. *procname.Cache implements it.
type ProcessNames interface {
	NameFor(ctx context.Context, pid int32) string
}

// Classifier decides whether a domain looks suspicious.
type Classifier interface {
	IsSuspicious(domain string) bool
}

// State is everything a Monitor carries from one cycle to the next.
// It is written only by Scan.
type State struct {
	Domains   DomainCache
	Processes ProcessNames
	// Previous is the key set of the last successful cycle.
	Previous snapshot.Set
}

// Record is one enriched connection.
type Record struct {
	PID         int32
	ProcessName string
	RemoteIP    string
	RemotePort  uint32
	Domain      string
	State       resolver.State
	Suspicious  bool
}

// Result is the output of one cycle.
type Result struct {
	Cycle          int
	ScannedAt      time.Time
	Duration       time.Duration
	Records        []Record
	NewConnections int
	ResolvedIPs    int
	Fingerprint    uint64
}

// SuspiciousCount returns the number of flagged records.
func (r *Result) SuspiciousCount() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Suspicious {
			n++
		}
	}
	return n
}

// Monitor drives scan cycles. Cycles never overlap: concurrent Scan calls
// run one after another.
type Monitor struct {
	source     netconn.Source
	classifier Classifier
	state      *State
	logger     zerolog.Logger
	sessionID  string
	now        func() time.Time

	mu    sync.Mutex
	cycle int
}

// New creates a Monitor over state. A nil Previous is treated as empty.
func New(source netconn.Source, state *State, classifier Classifier, logger zerolog.Logger) *Monitor {
	if state.Previous == nil {
		state.Previous = make(snapshot.Set)
	}

	sessionID := uuid.NewString()
	return &Monitor{
		source:     source,
		classifier: classifier,
		state:      state,
		logger:     logger.With().Str("component", "monitor").Str("session", sessionID).Logger(),
		sessionID:  sessionID,
		now:        time.Now,
	}
}

// SessionID identifies this Monitor in logs.
func (m *Monitor) SessionID() string {
	return m.sessionID
}

// Scan runs one cycle. A failure to read the connection table aborts the
// cycle with an error wrapping ErrFetchConnections and leaves the previous
// snapshot untouched. Per-connection lookup failures never fail the cycle.
func (m *Monitor) Scan(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.now()

	conns, err := m.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchConnections, err)
	}

	current := snapshot.FromConnections(conns)
	fresh := snapshot.Diff(current, m.state.Previous)

	// Resolve the remote IPs of new connections, plus those of known
	// connections whose answer has left an expiring store. The resolver
	// skips any that are already cached.
	pending := make([]string, 0, len(fresh))
	seen := make(map[string]struct{}, len(fresh))
	for _, c := range conns {
		if _, ok := seen[c.RemoteIP]; ok {
			continue
		}
		if !fresh.Contains(c.Key()) {
			if _, cached := m.state.Domains.Lookup(c.RemoteIP); cached {
				continue
			}
		}
		seen[c.RemoteIP] = struct{}{}
		pending = append(pending, c.RemoteIP)
	}

	batch := m.state.Domains.ResolveMany(ctx, pending)

	records := make([]Record, 0, len(conns))
	for _, c := range conns {
		res, ok := m.state.Domains.Lookup(c.RemoteIP)
		if !ok {
			res = resolver.Result{Domain: resolver.UnknownDomain, State: resolver.Unknown}
		}
		records = append(records, Record{
			PID:         c.PID,
			ProcessName: m.state.Processes.NameFor(ctx, c.PID),
			RemoteIP:    c.RemoteIP,
			RemotePort:  c.RemotePort,
			Domain:      res.Domain,
			State:       res.State,
			Suspicious:  m.classifier.IsSuspicious(res.Domain),
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PID < records[j].PID
	})

	m.state.Previous = current
	m.cycle++

	result := &Result{
		Cycle:          m.cycle,
		ScannedAt:      start,
		Duration:       m.now().Sub(start),
		Records:        records,
		NewConnections: len(fresh),
		ResolvedIPs:    batch.Dispatched,
		Fingerprint:    current.Fingerprint(),
	}

	m.logger.Debug().
		Int("cycle", result.Cycle).
		Int("connections", len(records)).
		Int("new", result.NewConnections).
		Int("resolved", result.ResolvedIPs).
		Int("suspicious", result.SuspiciousCount()).
		Str("fingerprint", fmt.Sprintf("%016x", result.Fingerprint)).
		Dur("duration", result.Duration).
		Msg("Scan completed")

	return result, nil
}
