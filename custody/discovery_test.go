package custody

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSRVServer(t *testing.T, records map[string][]*dns.SRV) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			answers, ok := records[r.Question[0].Name]
			if !ok {
				m.SetRcode(r, dns.RcodeNameError)
				_ = w.WriteMsg(m)
				return
			}
			m.SetReply(r)
			for _, srv := range answers {
				srv.Hdr = dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 60}
				m.Answer = append(m.Answer, srv)
			}
			_ = w.WriteMsg(m)
		}),
	}

	go func() { _ = server.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestResolveNodeURLs(t *testing.T) {
	resolver := startSRVServer(t, map[string][]*dns.SRV{
		"_custody._tcp.sign.local.": {
			{Priority: 20, Weight: 1, Port: 8082, Target: "node-c.sign.local."},
			{Priority: 10, Weight: 5, Port: 8080, Target: "node-a.sign.local."},
			{Priority: 10, Weight: 10, Port: 8081, Target: "node-b.sign.local."},
		},
	})

	urls, err := ResolveNodeURLs(context.Background(), "_custody._tcp.sign.local", resolver, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://node-b.sign.local:8081",
		"http://node-a.sign.local:8080",
		"http://node-c.sign.local:8082",
	}, urls)

	_, err = ResolveNodeURLs(context.Background(), "_missing._tcp.sign.local", resolver, "https")
	assert.Error(t, err)
}
