package resolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/netwatch/internal/testutil"
)

// startPTRServer runs an in-process nameserver:
//   - 1.2.3.4 has a PTR record,
//   - 8.8.4.4 is NXDOMAIN,
//   - 5.5.5.5 answers NOERROR without records,
//   - anything else is SERVFAIL.
func startPTRServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		msg := new(dns.Msg)
		name := r.Question[0].Name
		switch name {
		case "4.3.2.1.in-addr.arpa.":
			msg.SetReply(r)
			msg.Answer = append(msg.Answer, &dns.PTR{
				Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 60},
				Ptr: "host.example.com.",
			})
		case "4.4.8.8.in-addr.arpa.":
			msg.SetRcode(r, dns.RcodeNameError)
		case "5.5.5.5.in-addr.arpa.":
			msg.SetReply(r)
		default:
			msg.SetRcode(r, dns.RcodeServerFailure)
		}
		_ = w.WriteMsg(msg)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dns server did not start")
	}

	return pc.LocalAddr().String()
}

func TestDNSLookuper(t *testing.T) {
	addr := startPTRServer(t)
	lookuper := NewDNSLookuper(addr, time.Second)
	ctx := context.Background()

	name, err := lookuper.LookupAddr(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "host.example.com", name)

	_, err = lookuper.LookupAddr(ctx, "8.8.4.4")
	assert.ErrorIs(t, err, ErrNoRecord)

	_, err = lookuper.LookupAddr(ctx, "5.5.5.5")
	assert.ErrorIs(t, err, ErrNoRecord)

	_, err = lookuper.LookupAddr(ctx, "9.9.9.9")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecord)
	assert.Contains(t, err.Error(), "SERVFAIL")

	_, err = lookuper.LookupAddr(ctx, "not-an-ip")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecord)
}

func TestDNSLookuper_ThroughResolver(t *testing.T) {
	addr := startPTRServer(t)
	r := New(NewDNSLookuper(addr, time.Second), NewMapStore(), Config{}, testutil.NewTestLogger(t))

	stats := r.ResolveMany(context.Background(), []string{"1.2.3.4", "8.8.4.4", "9.9.9.9"})
	assert.Equal(t, 3, stats.Dispatched)

	res, _ := r.Lookup("1.2.3.4")
	assert.Equal(t, Result{Domain: "host.example.com", State: Resolved}, res)
	res, _ = r.Lookup("8.8.4.4")
	assert.Equal(t, Result{Domain: UnknownDomain, State: Unknown}, res)
	res, _ = r.Lookup("9.9.9.9")
	assert.Equal(t, Result{Domain: ErrorDomain, State: Error}, res)
}

func TestSystemLookuper_MalformedAddress(t *testing.T) {
	var lookuper SystemLookuper

	_, err := lookuper.LookupAddr(context.Background(), "999.1.1.1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecord)
}

func TestSystemLookuper_CustomResolver(t *testing.T) {
	addr := startPTRServer(t)
	lookuper := &SystemLookuper{Resolver: &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "udp", addr)
		},
	}}

	name, err := lookuper.LookupAddr(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "host.example.com", name)

	_, err = lookuper.LookupAddr(context.Background(), "8.8.4.4")
	assert.ErrorIs(t, err, ErrNoRecord)
}
