package smtp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"verimail/internal/cache"
)

func TestValidPort(t *testing.T) {
	assert.True(t, ValidPort(25))
	assert.True(t, ValidPort(65535))
	assert.False(t, ValidPort(0))
	assert.False(t, ValidPort(-25))
	assert.False(t, ValidPort(65536))
}

func TestCandidatesNoCache(t *testing.T) {
	p := NewProber(nil)
	assert.Equal(t, []int{25, 587}, p.Candidates(context.Background(), "mx.example.com", []int{25, 587}))
}

func TestCandidatesDropsInvalidAndDuplicates(t *testing.T) {
	p := NewProber(nil)
	got := p.Candidates(context.Background(), "mx.example.com", []int{25, 0, 587, 25, 70000})
	assert.Equal(t, []int{25, 587}, got)
}

func TestCandidatesCachedWinnerFirst(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemory(0))
	p := NewProber(c)

	p.Remember(ctx, "mx.example.com", 587)

	got := p.Candidates(ctx, "mx.example.com", []int{25, 587})
	assert.Equal(t, []int{587, 25}, got, "cached winner leads and is not retried later in the list")
}

func TestRememberRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemory(0))
	p := NewProber(c)

	p.Remember(ctx, "mx.example.com", -1)
	assert.False(t, c.Has(ctx, cache.NSSMTPPort, "mx.example.com"))
}
