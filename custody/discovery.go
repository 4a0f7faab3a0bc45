package custody

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

// DefaultResolver is the local stub resolver address.
const DefaultResolver = "127.0.0.53:53"

// ResolveNodeURLs discovers custody nodes from the SRV records of service and
// returns their base URLs, ordered by priority then weight as returned.
func ResolveNodeURLs(ctx context.Context, service string, resolver string, scheme string) ([]string, error) {
	if resolver == "" {
		resolver = DefaultResolver
	}
	if scheme == "" {
		scheme = "http"
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(service), dns.TypeSRV)
	m.RecursionDesired = true

	c := new(dns.Client)
	in, _, err := c.ExchangeContext(ctx, m, resolver)
	if err != nil {
		return nil, fmt.Errorf("srv lookup for %s failed: %w", service, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("srv lookup for %s failed: %s", service, dns.RcodeToString[in.Rcode])
	}

	var records []*dns.SRV
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}
	sortSRV(records)

	urls := make([]string, 0, len(records))
	for _, srv := range records {
		host := strings.TrimSuffix(srv.Target, ".")
		urls = append(urls, fmt.Sprintf("%s://%s:%d", scheme, host, srv.Port))
	}
	return urls, nil
}

// sortSRV orders records by ascending priority and descending weight.
func sortSRV(records []*dns.SRV) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority < records[j].Priority
		}
		return records[i].Weight > records[j].Weight
	})
}
