//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/pkg/testutil/containers"
)

func TestRedis_SlidingWindow(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	s := NewRedis(rc.Client)
	for i := range 3 {
		res, err := s.Allow(ctx, "rl:submit:198.51.100.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := s.Allow(ctx, "rl:submit:198.51.100.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.GreaterOrEqual(t, res.RetryAfter, time.Second)

	res, err = s.Allow(ctx, "rl:submit:198.51.100.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "other clients are unaffected")
}

func TestRedis_WindowExpires(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	s := NewRedis(rc.Client)
	_, err := s.Allow(ctx, "rl:short", 1, 200*time.Millisecond)
	require.NoError(t, err)

	res, err := s.Allow(ctx, "rl:short", 1, 200*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	time.Sleep(300 * time.Millisecond)
	res, err = s.Allow(ctx, "rl:short", 1, 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
