package lookup

import (
	"context"
	"strings"
	"sync"
	"time"

	"verimail/internal/cache"
	"verimail/internal/models"
)

// boolFact is the cached form of a dataset membership check. Both hits
// and misses are cached.
type boolFact struct {
	Value     bool      `json:"value"`
	CheckedAt time.Time `json:"checked_at"`
}

// Classifier answers disposable/free membership questions against the
// static datasets, fronted by the cache.
type Classifier struct {
	sets  Sets
	cache *cache.Cache
}

// NewClassifier builds a classifier. Nil set maps fall back to the
// embedded defaults.
func NewClassifier(sets Sets, c *cache.Cache) *Classifier {
	def := DefaultSets()
	if sets.Disposable == nil {
		sets.Disposable = def.Disposable
	}
	if sets.Free == nil {
		sets.Free = def.Free
	}
	return &Classifier{sets: sets, cache: c}
}

// ExtractDomain accepts either a bare domain or a full address and
// returns the lowercased domain.
func ExtractDomain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		return s[at+1:]
	}
	return s
}

// IsDisposable reports whether the domain is a known burner provider.
func (c *Classifier) IsDisposable(ctx context.Context, domain string) bool {
	return c.member(ctx, cache.NSDisposable, c.sets.Disposable, domain)
}

// IsFree reports whether the domain is a major free consumer provider.
func (c *Classifier) IsFree(ctx context.Context, domain string) bool {
	return c.member(ctx, cache.NSFree, c.sets.Free, domain)
}

func (c *Classifier) member(ctx context.Context, ns string, set map[string]struct{}, domain string) bool {
	domain = ExtractDomain(domain)

	var fact boolFact
	if c.cache.GetJSON(ctx, ns, domain, &fact) {
		return fact.Value
	}

	_, hit := set[domain]
	c.cache.SetJSON(ctx, ns, domain, boolFact{Value: hit, CheckedAt: time.Now()}, 0)
	return hit
}

// Facts runs the disposable and free checks concurrently and folds in the
// role-account flag. A failure in one check never blocks the other.
func (c *Classifier) Facts(ctx context.Context, local, domain string) models.MiscFacts {
	facts := models.MiscFacts{IsRoleAccount: IsRoleAccount(local)}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		facts.IsDisposable = c.IsDisposable(ctx, domain)
	}()
	go func() {
		defer wg.Done()
		facts.IsFree = c.IsFree(ctx, domain)
	}()
	wg.Wait()

	return facts
}
