package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func openMem(t *testing.T) *Badger {
	t.Helper()
	c, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKey(t *testing.T) {
	assert.Equal(t, "cnpj:11222333000181", Key("cnpj", "11222333000181"))
	assert.Equal(t, "web_search:ACME OR Acme", Key("web_search", "ACME OR Acme"))
}

func TestBadger_SetGetDelete(t *testing.T) {
	c := openMem(t)
	ctx := context.Background()

	var got payload
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", payload{Name: "acme", Score: 0.9}, time.Minute))

	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload{Name: "acme", Score: 0.9}, got)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadger_SliceValues(t *testing.T) {
	c := openMem(t)
	ctx := context.Background()

	in := []payload{{Name: "a", Score: 0.95}, {Name: "b", Score: 0.85}}
	require.NoError(t, c.Set(ctx, "list", in, 0))

	var out []payload
	ok, err := c.Get(ctx, "list", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestBadger_Expiry(t *testing.T) {
	c := openMem(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "v", time.Second))
	time.Sleep(1100 * time.Millisecond)

	var s string
	ok, err := c.Get(ctx, "short", &s)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadger_DecodeError(t *testing.T) {
	c := openMem(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "a string", time.Minute))

	var p payload
	_, err := c.Get(ctx, "k", &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache: decode k")
}

func TestBadger_CanceledContext(t *testing.T) {
	c := openMem(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var s string
	_, err := c.Get(ctx, "k", &s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, c.Set(ctx, "k", "v", time.Minute), context.Canceled)
	assert.ErrorIs(t, c.Delete(ctx, "k"), context.Canceled)
}

func TestBadger_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "persist", 42, time.Hour))
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()

	var n int
	ok, err := c.Get(ctx, "persist", &n)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, n)
}
