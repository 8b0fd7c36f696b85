// Package lookup resolves and classifies the DNS- and dataset-level facts
// about a domain: MX records, disposable/free membership, role accounts
// and registration age. Every expensive path is fronted by the cache.
package lookup

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"time"

	"verimail/internal/cache"
	"verimail/internal/models"
)

// Resolver is the slice of net.Resolver the MX path needs. Satisfied by
// *net.Resolver and by mockdns.Resolver in tests.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// DefaultResolver enforces a fail-fast dial on the DNS transport itself.
// A slow upstream DNS server must not eat the whole verification budget.
var DefaultResolver Resolver = &net.Resolver{
	PreferGo: true,
	Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
		d := net.Dialer{Timeout: 3 * time.Second}
		return d.DialContext(ctx, network, address)
	},
}

// ResolveMX performs an MX lookup with cache-aside against the mx
// namespace. Results come back sorted by ascending priority; ties keep
// resolver order. Negative results are never cached.
func ResolveMX(ctx context.Context, c *cache.Cache, r Resolver, domain string, timeout time.Duration) models.MXLookup {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if r == nil {
		r = DefaultResolver
	}

	var hosts []string
	if c.GetJSON(ctx, cache.NSMx, domain, &hosts) && len(hosts) > 0 {
		return lookupFromHosts(hosts)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	mxs, err := r.LookupMX(ctx, domain)
	if err != nil {
		return models.MXLookup{Success: false, ErrorKind: classifyDNSError(err), RawError: err.Error()}
	}
	if len(mxs) == 0 {
		return models.MXLookup{Success: false, ErrorKind: models.ErrMxNotFound, RawError: "no MX records found"}
	}

	sort.SliceStable(mxs, func(i, j int) bool { return mxs[i].Pref < mxs[j].Pref })

	records := make([]models.MXRecord, len(mxs))
	hosts = make([]string, len(mxs))
	for i, mx := range mxs {
		records[i] = models.MXRecord{Host: mx.Host, Pref: mx.Pref}
		hosts[i] = mx.Host
	}

	c.SetJSON(ctx, cache.NSMx, domain, hosts, 0)
	// A domain with MX records is known to receive mail; downstream
	// heuristics (typo suggestion) consult this.
	c.SetJSON(ctx, cache.NSDomainValid, domain, true, 0)

	return models.MXLookup{Success: true, Records: records}
}

// lookupFromHosts rebuilds a lookup from a cached ordered host list. The
// synthetic priorities only preserve ordering; callers must not depend on
// the numeric values.
func lookupFromHosts(hosts []string) models.MXLookup {
	records := make([]models.MXRecord, len(hosts))
	for i, h := range hosts {
		records[i] = models.MXRecord{Host: h, Pref: uint16(i)}
	}
	return models.MXLookup{Success: true, Records: records}
}

// classifyDNSError separates the three error classes the verdict table
// distinguishes: timeout, notFound and network.
func classifyDNSError(err error) models.ErrorKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return models.ErrMxNotFound
		}
		if dnsErr.IsTimeout {
			return models.ErrMxTimeout
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.ErrMxTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrMxTimeout
	}
	return models.ErrMxNetwork
}
