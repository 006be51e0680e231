package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", "v", 0))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	got, err = m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Now()
	m.SetClock(func() time.Time { return now })

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))

	ttl, err := m.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	now = now.Add(61 * time.Second)

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)

	exists, err := m.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryExpire(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, err := m.Expire(ctx, "missing", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	ok, err = m.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := m.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)
}

func TestMemoryIncr(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for want := int64(1); want <= 3; want++ {
		n, err := m.Incr(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	require.NoError(t, m.Set(ctx, "str", "not-a-number", 0))
	_, err := m.Incr(ctx, "str")
	assert.Error(t, err)
}

func TestMemorySets(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.SAdd(ctx, "s", "a", "b", "a"))

	members, err := m.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	found, err := m.SIsMember(ctx, "s", "a")
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, m.SRem(ctx, "s", "a"))
	found, err = m.SIsMember(ctx, "s", "a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryHashes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.HSet(ctx, "h", "f1", "v1"))
	require.NoError(t, m.HSet(ctx, "h", "f2", "v2"))

	v, err := m.HGet(ctx, "h", "f1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	all, err := m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"f1": "v1", "f2": "v2"}, all)
}

func TestMemoryDeletePattern(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "session:1", "a", 0))
	require.NoError(t, m.Set(ctx, "session:2", "b", 0))
	require.NoError(t, m.Set(ctx, "other:1", "c", 0))

	deleted, err := m.DeletePattern(ctx, "session:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	got, err := m.Get(ctx, "other:1")
	require.NoError(t, err)
	assert.Equal(t, "c", got)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, SetJSON(ctx, m, "p", payload{Name: "x", Count: 3}, 0))

	var out payload
	found, err := GetJSON(ctx, m, "p", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "x", Count: 3}, out)

	found, err = GetJSON(ctx, m, "missing", &out)
	require.NoError(t, err)
	assert.False(t, found)

	// Corrupt values are a miss, not an error.
	require.NoError(t, m.Set(ctx, "broken", "{not json", 0))
	found, err = GetJSON(ctx, m, "broken", &out)
	require.NoError(t, err)
	assert.False(t, found)
}
