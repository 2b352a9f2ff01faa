package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLMapSetGetDelete(t *testing.T) {
	m := NewTTLMap(time.Minute)

	m.Set("k", 42.0)
	value, ok := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42.0, value)

	m.Delete("k")
	_, ok = m.Get("k")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestTTLMapExpiredEntryEvictedOnRead(t *testing.T) {
	m := NewTTLMap(-time.Millisecond)

	m.Set("k", "v")
	assert.Equal(t, 1, m.Len())

	_, ok := m.Get("k")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}
