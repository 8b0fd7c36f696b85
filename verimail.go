// Package verimail verifies whether an email address can actually receive
// mail. A verification runs up to four phases: RFC 5321 syntax validation,
// MX resolution, dataset classification (disposable, free, role account)
// and a live SMTP conversation against the best mail exchanger, with
// HTTP/WebDriver side-channels for providers whose exchangers refuse RCPT
// probing. Every expensive phase is fronted by a pluggable cache.
//
// The zero-configuration path:
//
//	result, err := verimail.Verify(ctx, verimail.Params{
//		EmailAddress: "someone@example.com",
//		VerifySMTP:   true,
//	})
//
// For shared caches, custom resolvers or proxied SMTP dialing, build a
// Verifier once and reuse it across calls.
package verimail

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"verimail/internal/cache"
	"verimail/internal/lookup"
	"verimail/internal/proxy"
	"verimail/internal/smtp"
)

// Resolver performs MX lookups. *net.Resolver satisfies it, as does the
// mockdns resolver used in tests.
type Resolver = lookup.Resolver

// Dialer opens SMTP connections. *net.Dialer satisfies it.
type Dialer = smtp.Dialer

// Verifier carries the long-lived collaborators shared across calls:
// the cache fabric, the dataset classifier, the DNS resolver and the
// SMTP dialer. The zero value is not usable; construct with New.
type Verifier struct {
	cache      *cache.Cache
	classifier *lookup.Classifier
	resolver   Resolver
	dialer     Dialer
	httpClient *http.Client
	debug      bool
}

// New builds a Verifier with an in-process LRU cache and the default
// datasets. Options are applied with the With* methods, which return the
// receiver for chaining.
func New() *Verifier {
	v := &Verifier{}
	return v.WithMemoryCache(0)
}

// WithMemoryCache replaces the cache with an in-process LRU bounded to
// maxEntries per namespace. Zero means the default capacity.
func (v *Verifier) WithMemoryCache(maxEntries int) *Verifier {
	return v.withCache(cache.New(cache.NewMemory(maxEntries)))
}

// WithRedis replaces the cache with a Redis-backed one, so concurrent
// processes share MX, SMTP and port-probe results.
func (v *Verifier) WithRedis(client *redis.Client) *Verifier {
	return v.withCache(cache.New(cache.NewRedis(client)))
}

// WithoutCache disables caching; every phase recomputes.
func (v *Verifier) WithoutCache() *Verifier {
	return v.withCache(nil)
}

func (v *Verifier) withCache(c *cache.Cache) *Verifier {
	v.cache = c
	v.classifier = lookup.NewClassifier(lookup.Sets{}, c)
	return v
}

// WithSets replaces the disposable and free domain datasets. Nil keeps
// the embedded defaults for that set.
func (v *Verifier) WithSets(disposable, free []string) *Verifier {
	sets := lookup.Sets{}
	if disposable != nil {
		sets.Disposable = toSet(disposable)
	}
	if free != nil {
		sets.Free = toSet(free)
	}
	v.classifier = lookup.NewClassifier(sets, v.cache)
	return v
}

// WithResolver injects the DNS resolver used for MX lookups.
func (v *Verifier) WithResolver(r Resolver) *Verifier {
	v.resolver = r
	return v
}

// WithDialer injects the dialer used for SMTP connections.
func (v *Verifier) WithDialer(d Dialer) *Verifier {
	v.dialer = d
	return v
}

// WithProxies routes SMTP connections through the given SOCKS proxies in
// rotation, at most limit concurrent proxied dials. Fails on a proxy URL
// that does not parse.
func (v *Verifier) WithProxies(proxyList []string, limit int, dialTimeout time.Duration) (*Verifier, error) {
	m, err := proxy.New(proxyList, limit)
	if err != nil {
		return v, err
	}
	v.dialer = m.Bind(dialTimeout)
	return v, nil
}

// WithHTTPClient injects the client used by the Yahoo probe, the WHOIS
// lookup and the WebDriver transport.
func (v *Verifier) WithHTTPClient(client *http.Client) *Verifier {
	v.httpClient = client
	return v
}

// WithDebug turns on debug logging for the SMTP and cache paths.
func (v *Verifier) WithDebug() *Verifier {
	v.debug = true
	return v
}

func toSet(domains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[lookup.ExtractDomain(d)] = struct{}{}
	}
	return set
}
