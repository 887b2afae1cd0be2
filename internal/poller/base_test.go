package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockScanner is a test implementation of the Scanner interface.
type mockScanner struct {
	mu        sync.Mutex
	scanCount int
	failAt    int // 1-based scan that fails; 0 never fails
	err       error
}

func (m *mockScanner) ScanOnce(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanCount++
	if m.failAt > 0 && m.scanCount == m.failAt {
		return m.err
	}
	return nil
}

func (m *mockScanner) getScanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanCount
}

func TestBasePoller_StartStop(t *testing.T) {
	mock := &mockScanner{}

	base := NewBasePoller(context.Background(), Config{
		Name:     "test_poller",
		Interval: 10 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	// Should not be running initially.
	if base.IsRunning() {
		t.Error("Poller should not be running initially")
	}

	if err := base.Start(mock); err != nil {
		t.Fatalf("Failed to start poller: %v", err)
	}

	if !base.IsRunning() {
		t.Error("Poller should be running after Start")
	}

	// Starting again should be idempotent.
	if err := base.Start(mock); err != nil {
		t.Fatalf("Second Start should not fail: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if err := base.Stop(); err != nil {
		t.Fatalf("Failed to stop poller: %v", err)
	}

	if base.IsRunning() {
		t.Error("Poller should not be running after Stop")
	}

	// Stopping again should be idempotent.
	if err := base.Stop(); err != nil {
		t.Fatalf("Second Stop should not fail: %v", err)
	}

	if mock.getScanCount() < 1 {
		t.Errorf("Expected at least 1 scan, got %d", mock.getScanCount())
	}

	if err := base.Wait(); err != nil {
		t.Errorf("Wait after Stop should return nil, got %v", err)
	}
}

func TestBasePoller_Interval(t *testing.T) {
	mock := &mockScanner{}

	base := NewBasePoller(context.Background(), Config{
		Name:     "test_poller",
		Interval: 20 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	if err := base.Start(mock); err != nil {
		t.Fatalf("Failed to start poller: %v", err)
	}
	defer base.Stop()

	time.Sleep(100 * time.Millisecond)

	// Initial scan + ~5 interval scans (100ms / 20ms).
	if n := mock.getScanCount(); n < 4 {
		t.Errorf("Expected at least 4 scans, got %d", n)
	}
}

func TestBasePoller_StopsOnScanError(t *testing.T) {
	fetchErr := errors.New("failed to fetch connections: permission denied")
	mock := &mockScanner{failAt: 2, err: fetchErr}

	base := NewBasePoller(context.Background(), Config{
		Name:     "test_poller",
		Interval: 5 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	if err := base.Start(mock); err != nil {
		t.Fatalf("Failed to start poller: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- base.Wait() }()

	select {
	case err := <-done:
		if !errors.Is(err, fetchErr) {
			t.Errorf("Expected scan error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Poller did not stop after a failed scan")
	}

	if base.IsRunning() {
		t.Error("Poller should not be running after a failed scan")
	}

	time.Sleep(20 * time.Millisecond)
	if n := mock.getScanCount(); n != 2 {
		t.Errorf("Expected exactly 2 scans, got %d", n)
	}

	if err := base.Stop(); err != nil {
		t.Fatalf("Stop after failure should not fail: %v", err)
	}
}

func TestBasePoller_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	base := NewBasePoller(ctx, Config{
		Name:     "test_poller",
		Interval: 5 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	scanner := ScannerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err := base.Start(scanner); err != nil {
		t.Fatalf("Failed to start poller: %v", err)
	}

	cancel()

	if err := base.Wait(); err != nil {
		t.Errorf("Cancellation should not be reported as a failure, got %v", err)
	}
}
