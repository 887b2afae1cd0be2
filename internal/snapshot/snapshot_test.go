package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coral-mesh/netwatch/internal/netconn"
)

func key(pid int32, ip string, port uint32) netconn.Key {
	return netconn.Key{PID: pid, RemoteIP: ip, RemotePort: port}
}

func setOf(keys ...netconn.Key) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func TestDiff(t *testing.T) {
	a := key(1, "1.2.3.4", 443)
	b := key(2, "8.8.8.8", 53)
	c := key(3, "9.9.9.9", 853)

	tests := []struct {
		name     string
		current  Set
		previous Set
		expected Set
	}{
		{"both empty", Set{}, Set{}, Set{}},
		{"first cycle", setOf(a, b), Set{}, setOf(a, b)},
		{"nil previous", setOf(a), nil, setOf(a)},
		{"unchanged", setOf(a, b), setOf(a, b), Set{}},
		{"one new", setOf(a, b, c), setOf(a, b), setOf(c)},
		{"closed connections ignored", setOf(a), setOf(a, b, c), Set{}},
		{"mixed", setOf(b, c), setOf(a, b), setOf(c)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Diff(tt.current, tt.previous))
		})
	}
}

func TestDiff_SelfIsEmpty(t *testing.T) {
	s := setOf(key(1, "1.2.3.4", 443), key(1, "1.2.3.4", 444), key(2, "1.2.3.4", 443))
	assert.Empty(t, Diff(s, s))
}

func TestDiff_DoesNotMutateInputs(t *testing.T) {
	current := setOf(key(1, "1.2.3.4", 443), key(2, "5.6.7.8", 80))
	previous := setOf(key(1, "1.2.3.4", 443))

	Diff(current, previous)

	assert.Len(t, current, 2)
	assert.Len(t, previous, 1)
}

func TestDiff_KeyIsFullTriple(t *testing.T) {
	previous := setOf(key(1, "1.2.3.4", 443))

	// Same IP, different port or pid, is a new connection.
	current := setOf(key(1, "1.2.3.4", 8443), key(7, "1.2.3.4", 443))
	assert.Len(t, Diff(current, previous), 2)
}

func TestFromConnections(t *testing.T) {
	conns := []netconn.Connection{
		{PID: 1, RemoteIP: "1.2.3.4", RemotePort: 443, Status: netconn.StatusEstablished},
		{PID: 1, RemoteIP: "1.2.3.4", RemotePort: 443, Status: netconn.StatusEstablished},
		{PID: 0, RemoteIP: "8.8.8.8", RemotePort: 53, Status: netconn.StatusEstablished},
	}

	s := FromConnections(conns)

	assert.Len(t, s, 2)
	assert.True(t, s.Contains(key(1, "1.2.3.4", 443)))
	assert.True(t, s.Contains(key(0, "8.8.8.8", 53)))
	assert.False(t, s.Contains(key(0, "8.8.8.8", 54)))
}

func TestFingerprint(t *testing.T) {
	a := key(1, "1.2.3.4", 443)
	b := key(2, "8.8.8.8", 53)

	assert.Equal(t, uint64(0), Set{}.Fingerprint())
	assert.Equal(t, setOf(a, b).Fingerprint(), setOf(b, a).Fingerprint())
	assert.NotEqual(t, setOf(a).Fingerprint(), setOf(a, b).Fingerprint())
	assert.NotEqual(t, setOf(key(1, "1.2.3.4", 443)).Fingerprint(), setOf(key(14, "1.2.3.", 443)).Fingerprint())
}
