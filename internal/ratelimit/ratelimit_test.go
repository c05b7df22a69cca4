package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsUpToCapacity(t *testing.T) {
	l := New()
	defer l.Close()

	for i := 0; i < bucketCapacity; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "request %d should be allowed", i)
	}
	assert.False(t, l.Allow("1.2.3.4"), "request beyond capacity should be denied")
}

func TestLimiter_SeparateKeysIndependent(t *testing.T) {
	l := New()
	defer l.Close()

	for i := 0; i < bucketCapacity; i++ {
		l.Allow("a")
	}
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestLimiter_RefillsAfterWindow(t *testing.T) {
	l := New()
	defer l.Close()

	b := &bucket{tokens: 0, lastRefill: time.Now().Add(-windowLength - time.Second)}
	l.mu.Lock()
	l.buckets["refill-key"] = b
	l.mu.Unlock()

	assert.True(t, l.Allow("refill-key"))
}

func TestLimiter_Remaining(t *testing.T) {
	l := New()
	defer l.Close()

	assert.Equal(t, bucketCapacity, l.Remaining("fresh"))
	l.Allow("fresh")
	assert.Equal(t, bucketCapacity-1, l.Remaining("fresh"))
}

func TestLimiter_Sweep_EvictsStaleBuckets(t *testing.T) {
	l := New()
	defer l.Close()

	l.mu.Lock()
	l.buckets["stale"] = &bucket{tokens: 10, lastRefill: time.Now().Add(-sweepInterval - time.Second)}
	l.buckets["fresh"] = &bucket{tokens: 10, lastRefill: time.Now()}
	l.mu.Unlock()

	l.sweep()

	l.mu.Lock()
	_, staleExists := l.buckets["stale"]
	_, freshExists := l.buckets["fresh"]
	l.mu.Unlock()

	assert.False(t, staleExists)
	assert.True(t, freshExists)
}
