package lookup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verimail/internal/cache"
)

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomain("user@Example.COM"))
	assert.Equal(t, "example.com", ExtractDomain("  EXAMPLE.com "))
	assert.Equal(t, "example.com", ExtractDomain("a@b@example.com"))
}

func TestClassifierDisposable(t *testing.T) {
	ctx := context.Background()
	c := NewClassifier(Sets{}, nil)

	assert.True(t, c.IsDisposable(ctx, "mailinator.com"))
	assert.True(t, c.IsDisposable(ctx, "user@YOPMAIL.com"))
	assert.False(t, c.IsDisposable(ctx, "gmail.com"))
}

func TestClassifierFree(t *testing.T) {
	ctx := context.Background()
	c := NewClassifier(Sets{}, nil)

	assert.True(t, c.IsFree(ctx, "gmail.com"))
	assert.True(t, c.IsFree(ctx, "protonmail.com"))
	assert.False(t, c.IsFree(ctx, "corporate.example"))
}

func TestClassifierCustomSets(t *testing.T) {
	ctx := context.Background()
	sets := Sets{Disposable: map[string]struct{}{"burner.example": {}}}
	c := NewClassifier(sets, nil)

	assert.True(t, c.IsDisposable(ctx, "burner.example"))
	// The custom set replaces the default one entirely.
	assert.False(t, c.IsDisposable(ctx, "mailinator.com"))
	// Free falls back to the embedded defaults.
	assert.True(t, c.IsFree(ctx, "gmail.com"))
}

func TestClassifierCachesMissesToo(t *testing.T) {
	ctx := context.Background()
	store := cache.New(cache.NewMemory(0))
	c := NewClassifier(Sets{}, store)

	assert.False(t, c.IsDisposable(ctx, "corporate.example"))
	assert.True(t, store.Has(ctx, cache.NSDisposable, "corporate.example"))
}

func TestFacts(t *testing.T) {
	ctx := context.Background()
	c := NewClassifier(Sets{}, nil)

	facts := c.Facts(ctx, "admin", "mailinator.com")
	assert.True(t, facts.IsDisposable)
	assert.False(t, facts.IsFree)
	assert.True(t, facts.IsRoleAccount)

	facts = c.Facts(ctx, "jane.doe", "gmail.com")
	assert.False(t, facts.IsDisposable)
	assert.True(t, facts.IsFree)
	assert.False(t, facts.IsRoleAccount)
}

func TestIsRoleAccount(t *testing.T) {
	assert.True(t, IsRoleAccount("postmaster"))
	assert.True(t, IsRoleAccount("Support"))
	assert.False(t, IsRoleAccount("jane"))
}

func TestLookupWhoisCacheHit(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemory(0))

	registered := time.Now().AddDate(-2, 0, 0).UTC().Truncate(time.Second)
	c.SetJSON(ctx, cache.NSWhois, "example.com", WhoisRecord{
		Domain:       "example.com",
		RegisteredAt: registered,
	}, 0)

	rec, err := LookupWhois(ctx, c, nil, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", rec.Domain)
	assert.InDelta(t, 730, rec.AgeDays(), 2)
}

func TestWhoisAgeDaysZeroWhenUnknown(t *testing.T) {
	assert.Equal(t, 0, WhoisRecord{}.AgeDays())
}
