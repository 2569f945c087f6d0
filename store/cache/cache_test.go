package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	evicted := []string{}
	c := New(Config{DefaultTTL: 20 * time.Millisecond, OnEviction: func(key string, _ any) {
		mu.Lock()
		evicted = append(evicted, key)
		mu.Unlock()
	}})
	defer c.Close()

	c.Set(ctx, "a", 1)
	c.SetWithTTL(ctx, "b", 2, 0)

	v, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.True(t, ok, "zero ttl never expires")

	mu.Lock()
	assert.Equal(t, []string{"a"}, evicted)
	mu.Unlock()
}

func TestCacheMaxItems(t *testing.T) {
	ctx := context.Background()
	c := New(Config{DefaultTTL: time.Minute, MaxItems: 2})
	defer c.Close()

	c.SetWithTTL(ctx, "soon", 1, time.Second)
	c.SetWithTTL(ctx, "late", 2, time.Hour)
	c.SetWithTTL(ctx, "new", 3, time.Hour)

	assert.Equal(t, 2, c.Size())
	_, ok := c.Get(ctx, "soon")
	assert.False(t, ok)
}

type mapL2 struct {
	mu   sync.Mutex
	data map[string]any
}

func (m *mapL2) Set(ctx context.Context, key string, value any) { m.SetWithTTL(ctx, key, value, 0) }
func (m *mapL2) SetWithTTL(_ context.Context, key string, value any, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}
func (m *mapL2) Get(_ context.Context, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}
func (m *mapL2) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}
func (m *mapL2) Clear(context.Context) {}
func (m *mapL2) Close() error          { return nil }

func TestTieredCacheFallsThroughLayers(t *testing.T) {
	ctx := context.Background()
	l2 := &mapL2{data: map[string]any{"from-l2": "x"}}
	tc := NewTieredCacheWithL2(nil, l2)
	defer tc.Close()

	v, ok := tc.Get(ctx, "from-l2", nil)
	require.True(t, ok)
	assert.Equal(t, "x", v)

	calls := 0
	fetch := func(context.Context, string) (any, error) {
		calls++
		return "db", nil
	}
	v, ok = tc.Get(ctx, "from-db", fetch)
	require.True(t, ok)
	assert.Equal(t, "db", v)
	_, ok = tc.Get(ctx, "from-db", fetch)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)

	_, stored := l2.Get(ctx, "from-db")
	assert.True(t, stored)

	tc.Delete(ctx, "from-db")
	_, stored = l2.Get(ctx, "from-db")
	assert.False(t, stored)
}
