package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Label lookups run once per distinct address per transaction batch,
// so the hot paths must stay allocation-free.

func TestLRU_GetHitAllocs(t *testing.T) {
	c := NewLRU[string, int](1024, time.Hour)
	c.Put("0xdeadbeef", 42)

	allocs := testing.AllocsPerRun(1000, func() {
		c.Get("0xdeadbeef")
	})
	assert.Zero(t, allocs, "cache hit should not allocate")
}

func TestLRU_GetMissAllocs(t *testing.T) {
	c := NewLRU[string, int](1024, time.Hour)

	allocs := testing.AllocsPerRun(1000, func() {
		c.Get("0xabsent")
	})
	assert.Zero(t, allocs, "cache miss should not allocate")
}

func TestLRU_PutUpdateAllocs(t *testing.T) {
	c := NewLRU[string, int](1024, time.Hour)
	c.Put("0xdeadbeef", 1)

	allocs := testing.AllocsPerRun(1000, func() {
		c.Put("0xdeadbeef", 2)
	})
	assert.Zero(t, allocs, "refreshing an existing entry should not allocate")
}
