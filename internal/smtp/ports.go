package smtp

import (
	"context"

	"verimail/internal/cache"
)

// Prober orders the candidate ports for an MX host, remembering the last
// port that produced a usable session.
type Prober struct {
	cache *cache.Cache
}

func NewProber(c *cache.Cache) *Prober {
	return &Prober{cache: c}
}

// ValidPort rejects ports that must never be dialed.
func ValidPort(port int) bool {
	return port > 0 && port <= 65535
}

// Candidates returns the ports to try in order: the cached winner first,
// then the tuned list. Invalid and duplicate ports are dropped, so no
// port is attempted twice within one call.
func (p *Prober) Candidates(ctx context.Context, mxHost string, tuned []int) []int {
	seen := make(map[int]bool, len(tuned)+1)
	out := make([]int, 0, len(tuned)+1)

	var cached int
	if p.cache.GetJSON(ctx, cache.NSSMTPPort, mxHost, &cached) && ValidPort(cached) {
		seen[cached] = true
		out = append(out, cached)
	}

	for _, port := range tuned {
		if !ValidPort(port) || seen[port] {
			continue
		}
		seen[port] = true
		out = append(out, port)
	}
	return out
}

// Remember caches the winning port for the host.
func (p *Prober) Remember(ctx context.Context, mxHost string, port int) {
	if !ValidPort(port) {
		return
	}
	p.cache.SetJSON(ctx, cache.NSSMTPPort, mxHost, port, 0)
}
