package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimIsExclusiveUntilReleased(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	ctx := context.Background()
	key := fmt.Sprintf(KeyCallbackLock, "TXN-1")

	ok, err := Claim(ctx, rdb, key, TTLCallbackLock)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Claim(ctx, rdb, key, TTLCallbackLock)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists(key))

	require.NoError(t, Release(ctx, rdb, key))
	ok, err = Claim(ctx, rdb, key, TTLCallbackLock)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	ctx := context.Background()

	ok, err := Claim(ctx, rdb, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = Claim(ctx, rdb, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
