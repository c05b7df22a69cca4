package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/testutil"
)

func TestCache_GetStatus_CacheHit(t *testing.T) {
	redisCache := new(testutil.MockKBCache)
	store := new(testutil.MockPostgresStore)

	want := Status{Domain: "example.com", Verified: true, QATier: "citation_grade", FactCounts: map[string]int{"total": 3}}
	encoded, err := json.Marshal(want)
	require.NoError(t, err)
	redisCache.On("Get", mock.Anything, statusKey("example.com")).Return(string(encoded), nil)

	c := New(redisCache, store)
	got, err := c.GetStatus(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, want.Domain, got.Domain)
	assert.True(t, got.Verified)
	store.AssertNotCalled(t, "GetVerifiedDomain", mock.Anything, mock.Anything)
}

func TestCache_GetStatus_CacheMiss_FallsBackToStore(t *testing.T) {
	redisCache := new(testutil.MockKBCache)
	store := new(testutil.MockPostgresStore)

	redisCache.On("Get", mock.Anything, statusKey("example.com")).Return("", redis.Nil)
	now := time.Now()
	store.On("GetVerifiedDomain", mock.Anything, "example.com").Return(&domain.VerifiedDomain{
		Domain: "example.com", VerifiedAt: &now, ProtocolVersion: "1.1", QATier: "citation_grade", QAPass: true,
	}, nil)
	store.On("CountFacts", mock.Anything, "example.com").Return(map[string]int{"total": 10}, nil)
	redisCache.On("Set", mock.Anything, statusKey("example.com"), mock.Anything, statusTTL).Return(nil)

	c := New(redisCache, store)
	got, err := c.GetStatus(context.Background(), "example.com")
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Equal(t, "1.1", got.ProtocolVersion)
	assert.Equal(t, 10, got.FactCounts["total"])
	redisCache.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestCache_GetStatus_UnverifiedDomain(t *testing.T) {
	redisCache := new(testutil.MockKBCache)
	store := new(testutil.MockPostgresStore)

	redisCache.On("Get", mock.Anything, statusKey("new.com")).Return("", redis.Nil)
	store.On("GetVerifiedDomain", mock.Anything, "new.com").Return((*domain.VerifiedDomain)(nil), fmt.Errorf("postgres: verified domain not found: %s", "new.com"))
	store.On("CountFacts", mock.Anything, "new.com").Return(map[string]int{}, nil)
	redisCache.On("Set", mock.Anything, statusKey("new.com"), mock.Anything, statusTTL).Return(nil)

	c := New(redisCache, store)
	got, err := c.GetStatus(context.Background(), "new.com")
	require.NoError(t, err)
	assert.False(t, got.Verified)
}

func TestCache_GetStatus_NoRedis_ReadsStoreDirectly(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("GetVerifiedDomain", mock.Anything, "example.com").Return((*domain.VerifiedDomain)(nil), fmt.Errorf("postgres: verified domain not found: %s", "example.com"))
	store.On("CountFacts", mock.Anything, "example.com").Return(map[string]int{}, nil)

	c := New(nil, store)
	got, err := c.GetStatus(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", got.Domain)
}

func TestCache_Invalidate(t *testing.T) {
	redisCache := new(testutil.MockKBCache)
	redisCache.On("Delete", mock.Anything, statusKey("example.com")).Return(nil)

	c := New(redisCache, nil)
	err := c.Invalidate(context.Background(), "example.com")
	require.NoError(t, err)
	redisCache.AssertExpectations(t)
}

func TestCache_Invalidate_NoRedis(t *testing.T) {
	c := New(nil, nil)
	err := c.Invalidate(context.Background(), "example.com")
	require.NoError(t, err)
}
