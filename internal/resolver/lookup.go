package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ErrNoRecord is returned by a Lookuper when the address has no PTR record.
var ErrNoRecord = errors.New("no reverse record")

// Lookuper is the reverse-DNS facility. Implementations must return an
// error wrapping ErrNoRecord when the address has no reverse record, and any
// other error for every other failure.
type Lookuper interface {
	LookupAddr(ctx context.Context, ip string) (string, error)
}

// LookuperFunc adapts a function to the Lookuper interface.
type LookuperFunc func(ctx context.Context, ip string) (string, error)

// LookupAddr calls f(ctx, ip).
func (f LookuperFunc) LookupAddr(ctx context.Context, ip string) (string, error) {
	return f(ctx, ip)
}

// SystemLookuper resolves through the host resolver configuration.
type SystemLookuper struct {
	// Resolver defaults to net.DefaultResolver.
	Resolver *net.Resolver
}

// LookupAddr returns the first name the host resolver reports for ip.
func (l *SystemLookuper) LookupAddr(ctx context.Context, ip string) (string, error) {
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("malformed address %q", ip)
	}

	r := l.Resolver
	if r == nil {
		r = net.DefaultResolver
	}

	names, err := r.LookupAddr(ctx, ip)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return "", fmt.Errorf("%w for %s", ErrNoRecord, ip)
		}
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w for %s", ErrNoRecord, ip)
	}

	return strings.TrimSuffix(names[0], "."), nil
}

// DNSLookuper sends PTR queries straight to one nameserver, bypassing the
// host resolver and its caches.
type DNSLookuper struct {
	// Server is the nameserver as host:port.
	Server string
	client *dns.Client
}

// NewDNSLookuper creates a lookuper that queries server over UDP.
func NewDNSLookuper(server string, timeout time.Duration) *DNSLookuper {
	return &DNSLookuper{
		Server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// LookupAddr issues a PTR query for ip.
// NXDOMAIN and answers without PTR records both count as no record.
func (l *DNSLookuper) LookupAddr(ctx context.Context, ip string) (string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("malformed address %q: %w", ip, err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)

	client := l.client
	if client == nil {
		client = &dns.Client{Net: "udp"}
	}

	resp, _, err := client.ExchangeContext(ctx, msg, l.Server)
	if err != nil {
		return "", fmt.Errorf("ptr query for %s: %w", ip, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return "", fmt.Errorf("%w for %s", ErrNoRecord, ip)
	default:
		return "", fmt.Errorf("ptr query for %s: %s", ip, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrNoRecord, ip)
}
