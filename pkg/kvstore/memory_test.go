package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", "v", 20*time.Millisecond))
	_, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	time.Sleep(40 * time.Millisecond)
	_, found, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryOverwriteClearsTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", "v", 20*time.Millisecond))
	require.NoError(t, m.Set(ctx, "k", "v2", 0))

	time.Sleep(40 * time.Millisecond)
	v, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", v)
}
