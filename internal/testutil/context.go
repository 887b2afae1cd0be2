// Package testutil provides helpers shared by netwatch package tests.
package testutil

import (
	"context"
	"testing"
	"time"
)

// NewTestContext returns a context that is cancelled after timeout or when
// the test finishes, whichever comes first.
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
