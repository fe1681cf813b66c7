package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live server when REDIS_TEST_ADDR is set.
func TestURLCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	s := New(addr, "", 0)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	key := "test/" + time.Now().Format(time.RFC3339Nano) + ".mp4"
	_, ok, err := s.GetURL(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetURL(ctx, key, "https://blob.test/x", time.Minute))
	u, ok, err := s.GetURL(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://blob.test/x", u)

	require.NoError(t, s.DeleteURL(ctx, key))
	_, ok, _ = s.GetURL(ctx, key)
	assert.False(t, ok)
}
