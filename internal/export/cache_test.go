package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", []byte("A"))
	c.put("b", []byte("B"))

	value, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("A"), value)

	_, ok = c.get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []byte("A"))
	c.put("b", []byte("B"))
	c.put("c", []byte("C")) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	value, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, []byte("B"), value)

	value, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, []byte("C"), value)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []byte("A"))
	c.put("b", []byte("B"))

	// Access "a" to promote it
	c.get("a")

	// Insert "c": should evict "b" (LRU), not "a"
	c.put("c", []byte("C"))

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []byte("A1"))
	c.put("a", []byte("A2"))

	value, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("A2"), value)
	assert.Equal(t, 1, c.len())
}

func TestLRUCache_MinimumSize(t *testing.T) {
	c := newLRUCache(0)

	c.put("a", []byte("A"))
	_, ok := c.get("a")
	assert.True(t, ok, "a non-positive size still keeps the latest entry")
}
