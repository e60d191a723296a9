package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/filemanager/pkg/cache"
)

type tree struct {
	Name     string `json:"name"`
	Children []tree `json:"children"`
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore()

	var got tree
	assert.False(t, s.Get(ctx, "k", &got))

	want := tree{Name: "root", Children: []tree{{Name: "a", Children: []tree{}}}}
	require.NoError(t, s.Set(ctx, "k", want, 0))
	require.True(t, s.Get(ctx, "k", &got))
	assert.Equal(t, want, got)

	require.NoError(t, s.Del(ctx, "k", "missing"))
	assert.False(t, s.Get(ctx, "k", &got))
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore()

	require.NoError(t, s.Set(ctx, "short", 1, time.Nanosecond))
	time.Sleep(2 * time.Millisecond)

	var n int
	assert.False(t, s.Get(ctx, "short", &n))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "tree:local:docs", cache.Key("tree", "local", "docs"))
}
