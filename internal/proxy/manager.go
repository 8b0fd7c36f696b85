// Package proxy rotates outbound SMTP connections across a pool of
// SOCKS/HTTP proxies with a bounded number of concurrent dials.
package proxy

import (
	"fmt"
	"net/url"
	"sync/atomic"
)

// Manager hands out proxies round-robin. A nil Manager means direct
// connections everywhere.
type Manager struct {
	proxies []*url.URL
	counter uint64
	sem     chan struct{}
}

// New parses the proxy URLs and sets the concurrency limit. A limit <= 0
// defaults to one in-flight dial per proxy.
func New(proxyList []string, limit int) (*Manager, error) {
	var parsed []*url.URL
	for _, p := range proxyList {
		if p == "" {
			continue
		}
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", p, err)
		}
		parsed = append(parsed, u)
	}

	if limit <= 0 {
		limit = len(parsed)
		if limit == 0 {
			limit = 10
		}
	}

	return &Manager{
		proxies: parsed,
		sem:     make(chan struct{}, limit),
	}, nil
}

// Enabled reports whether any proxies are configured.
func (m *Manager) Enabled() bool {
	return m != nil && len(m.proxies) > 0
}

// Next returns the next proxy in rotation, nil when none are configured.
func (m *Manager) Next() *url.URL {
	if !m.Enabled() {
		return nil
	}
	n := atomic.AddUint64(&m.counter, 1)
	return m.proxies[(n-1)%uint64(len(m.proxies))]
}
