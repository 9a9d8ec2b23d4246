package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGet(t *testing.T) {
	c := New[string, int](16, time.Minute)

	c.Set("a", 1)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := New[string, string](16, time.Minute)

	c.Set("org", "acme")
	c.Invalidate("org")

	_, ok := c.Get("org")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := New[string, int](16, 20*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(50 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_Purge(t *testing.T) {
	c := New[string, int](16, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}
