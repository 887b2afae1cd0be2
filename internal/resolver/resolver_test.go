package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/netwatch/internal/testutil"
)

// fakeLookuper answers from a table and counts calls per IP.
type fakeLookuper struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   map[string]int
	delay   time.Duration

	// ignoreCtx makes the delay uninterruptible, like a blocking libc call.
	ignoreCtx bool

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func newFakeLookuper() *fakeLookuper {
	return &fakeLookuper{
		answers: make(map[string]string),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeLookuper) LookupAddr(ctx context.Context, ip string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[ip]++
	name, err := f.answers[ip], f.errs[ip]
	f.mu.Unlock()

	if f.delay > 0 && f.ignoreCtx {
		time.Sleep(f.delay)
	} else if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("%w for %s", ErrNoRecord, ip)
	}
	return name, nil
}

func (f *fakeLookuper) callsFor(ip string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ip]
}

func (f *fakeLookuper) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func TestResolve_CacheIdempotence(t *testing.T) {
	lookuper := newFakeLookuper()
	lookuper.answers["8.8.8.8"] = "dns.google"
	r := New(lookuper, NewMapStore(), Config{}, testutil.NewTestLogger(t))

	first := r.Resolve(context.Background(), "8.8.8.8")
	second := r.Resolve(context.Background(), "8.8.8.8")

	assert.Equal(t, Result{Domain: "dns.google", State: Resolved}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, lookuper.callsFor("8.8.8.8"))
}

func TestResolve_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		err      error
		expected Result
	}{
		{
			name:     "resolved",
			answer:   "mail.google.com",
			expected: Result{Domain: "mail.google.com", State: Resolved},
		},
		{
			name:     "no reverse record",
			expected: Result{Domain: UnknownDomain, State: Unknown},
		},
		{
			name:     "timeout",
			err:      context.DeadlineExceeded,
			expected: Result{Domain: ErrorDomain, State: Error},
		},
		{
			name:     "network failure",
			err:      errors.New("connection refused"),
			expected: Result{Domain: ErrorDomain, State: Error},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookuper := newFakeLookuper()
			lookuper.answers["10.0.0.1"] = tt.answer
			if tt.err != nil {
				lookuper.errs["10.0.0.1"] = tt.err
			}
			r := New(lookuper, NewMapStore(), Config{}, testutil.NewTestLogger(t))

			assert.Equal(t, tt.expected, r.Resolve(context.Background(), "10.0.0.1"))

			// Every outcome is terminal.
			assert.Equal(t, tt.expected, r.Resolve(context.Background(), "10.0.0.1"))
			assert.Equal(t, 1, lookuper.callsFor("10.0.0.1"))
		})
	}
}

func TestResolve_EmptyAnswerIsUnknown(t *testing.T) {
	r := New(LookuperFunc(func(context.Context, string) (string, error) {
		return "", nil
	}), nil, Config{}, testutil.NewTestLogger(t))

	assert.Equal(t, Result{Domain: UnknownDomain, State: Unknown}, r.Resolve(context.Background(), "1.1.1.1"))
}

func TestResolve_HungLookupTimesOut(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// This backend ignores ctx entirely.
	r := New(LookuperFunc(func(context.Context, string) (string, error) {
		<-release
		return "late.example.com", nil
	}), NewMapStore(), Config{Timeout: 20 * time.Millisecond}, testutil.NewTestLogger(t))

	start := time.Now()
	res := r.Resolve(context.Background(), "192.0.2.1")

	assert.Equal(t, Result{Domain: ErrorDomain, State: Error}, res)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolveMany_SkipsHitsAndDuplicates(t *testing.T) {
	lookuper := newFakeLookuper()
	lookuper.answers["1.1.1.1"] = "one.one.one.one"
	lookuper.answers["8.8.8.8"] = "dns.google"
	r := New(lookuper, NewMapStore(), Config{}, testutil.NewTestLogger(t))

	r.Resolve(context.Background(), "1.1.1.1")

	stats := r.ResolveMany(context.Background(), []string{"1.1.1.1", "8.8.8.8", "8.8.8.8", "9.9.9.9"})

	assert.Equal(t, BatchStats{Requested: 3, Hits: 1, Dispatched: 2}, stats)
	assert.Equal(t, 1, lookuper.callsFor("1.1.1.1"))
	assert.Equal(t, 1, lookuper.callsFor("8.8.8.8"))
	assert.Equal(t, 1, lookuper.callsFor("9.9.9.9"))

	res, ok := r.Lookup("9.9.9.9")
	require.True(t, ok, "every dispatched IP is cached once ResolveMany returns")
	assert.Equal(t, Unknown, res.State)
}

func TestResolveMany_Empty(t *testing.T) {
	lookuper := newFakeLookuper()
	r := New(lookuper, NewMapStore(), Config{}, testutil.NewTestLogger(t))

	assert.Equal(t, BatchStats{}, r.ResolveMany(context.Background(), nil))
	assert.Equal(t, 0, lookuper.totalCalls())
}

func TestResolveMany_BoundsConcurrency(t *testing.T) {
	lookuper := newFakeLookuper()
	lookuper.delay = 20 * time.Millisecond
	r := New(lookuper, NewMapStore(), Config{Concurrency: DefaultConcurrency}, testutil.NewTestLogger(t))

	ips := make([]string, 50)
	for i := range ips {
		ips[i] = fmt.Sprintf("10.0.0.%d", i+1)
	}

	stats := r.ResolveMany(context.Background(), ips)

	assert.Equal(t, 50, stats.Dispatched)
	assert.Equal(t, 50, lookuper.totalCalls())
	assert.LessOrEqual(t, lookuper.maxInFlight.Load(), int64(DefaultConcurrency))
	assert.Greater(t, lookuper.maxInFlight.Load(), int64(1), "lookups should overlap")
	assert.Equal(t, int64(0), lookuper.inFlight.Load(), "all lookups joined before return")
}

func TestResolveMany_BoundsBackendIgnoringContext(t *testing.T) {
	lookuper := newFakeLookuper()
	lookuper.delay = 100 * time.Millisecond
	lookuper.ignoreCtx = true
	r := New(lookuper, NewMapStore(), Config{
		Concurrency: DefaultConcurrency,
		Timeout:     10 * time.Millisecond,
	}, testutil.NewTestLogger(t))

	ips := make([]string, 50)
	for i := range ips {
		ips[i] = fmt.Sprintf("10.1.0.%d", i+1)
	}

	stats := r.ResolveMany(context.Background(), ips)

	assert.Equal(t, 50, stats.Dispatched)
	assert.LessOrEqual(t, lookuper.maxInFlight.Load(), int64(DefaultConcurrency))
	for _, ip := range ips {
		res, ok := r.Lookup(ip)
		require.True(t, ok, ip)
		assert.Equal(t, Error, res.State, ip)
	}

	require.Eventually(t, func() bool {
		return lookuper.inFlight.Load() == 0
	}, 2*time.Second, 5*time.Millisecond)

	// Slots are free again once the stuck calls return.
	lookuper.ignoreCtx = false
	lookuper.delay = 0
	lookuper.mu.Lock()
	lookuper.answers["10.9.9.9"] = "back.example"
	lookuper.mu.Unlock()
	assert.Equal(t, Result{Domain: "back.example", State: Resolved}, r.Resolve(context.Background(), "10.9.9.9"))
}

func TestResolveMany_CustomCeiling(t *testing.T) {
	lookuper := newFakeLookuper()
	lookuper.delay = 10 * time.Millisecond
	r := New(lookuper, NewMapStore(), Config{Concurrency: 3}, testutil.NewTestLogger(t))

	ips := make([]string, 12)
	for i := range ips {
		ips[i] = fmt.Sprintf("172.16.0.%d", i+1)
	}
	r.ResolveMany(context.Background(), ips)

	assert.LessOrEqual(t, lookuper.maxInFlight.Load(), int64(3))
}

func TestResolver_Stats(t *testing.T) {
	lookuper := newFakeLookuper()
	lookuper.answers["8.8.8.8"] = "dns.google"
	lookuper.errs["10.9.9.9"] = errors.New("boom")
	r := New(lookuper, NewMapStore(), Config{}, testutil.NewTestLogger(t))

	r.ResolveMany(context.Background(), []string{"8.8.8.8", "192.0.2.7", "10.9.9.9"})
	r.Resolve(context.Background(), "8.8.8.8")

	assert.Equal(t, map[string]int64{
		"lookups":  3,
		"resolved": 1,
		"unknown":  1,
		"errors":   1,
		"ips":      3,
	}, r.Stats())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "invalid", State(42).String())
}
