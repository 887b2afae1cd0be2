// Package snapshot computes which connections are new between two scan
// cycles.
package snapshot

import (
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/netwatch/internal/netconn"
)

// Set is a set of connection keys observed in one scan cycle.
type Set map[netconn.Key]struct{}

// FromConnections builds the key set of conns.
func FromConnections(conns []netconn.Connection) Set {
	s := make(Set, len(conns))
	for _, c := range conns {
		s[c.Key()] = struct{}{}
	}
	return s
}

// Contains reports whether k is in s.
func (s Set) Contains(k netconn.Key) bool {
	_, ok := s[k]
	return ok
}

// Diff returns the keys of current that are not in previous.
// Neither argument is modified.
func Diff(current, previous Set) Set {
	out := make(Set)
	for k := range current {
		if _, ok := previous[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// Fingerprint is an order-independent digest of the set. Equal sets have
// equal fingerprints; the empty set is 0.
func (s Set) Fingerprint() uint64 {
	var sum uint64
	buf := make([]byte, 0, 64)
	for k := range s {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(k.PID), 10)
		buf = append(buf, '|')
		buf = append(buf, k.RemoteIP...)
		buf = append(buf, '|')
		buf = strconv.AppendUint(buf, uint64(k.RemotePort), 10)
		sum += xxh3.Hash(buf)
	}
	return sum
}
