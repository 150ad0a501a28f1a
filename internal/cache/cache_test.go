package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDisabledWhenMaxAgeZero(t *testing.T) {
	c := New(0, 0)
	assert.False(t, c.Configured())
	assert.False(t, c.Append([]byte("x")))
}

func TestAppendAndFinalizeRoundtrip(t *testing.T) {
	c := New(60, 1024)

	c.Acquire()
	assert.True(t, c.Append([]byte("hello ")))
	assert.True(t, c.Append([]byte("world")))
	now := time.Unix(1_700_000_000, 0)
	assert.True(t, c.Finalize(now))
	assert.Equal(t, "hello world", string(c.Bytes()))
	c.Release()

	c.Acquire()
	assert.True(t, c.Valid(now))
	assert.True(t, c.Valid(now.Add(59*time.Second)))
	assert.False(t, c.Valid(now.Add(61*time.Second)))
	c.Release()
}

func TestAppendOverflowInvalidatesCache(t *testing.T) {
	c := New(60, 8)

	c.Acquire()
	assert.False(t, c.Append([]byte("way too long to fit")))
	assert.Equal(t, 0, len(c.Bytes()))
	c.Release()
}

func TestResetInvalidatesRegardlessOfValidity(t *testing.T) {
	c := New(60, 1024)

	c.Acquire()
	c.Append([]byte("cached"))
	c.Finalize(time.Now())
	c.Release()

	c.Reset()

	c.Acquire()
	assert.False(t, c.Valid(time.Now()))
	assert.Equal(t, 0, len(c.Bytes()))
	c.Release()
}

func TestAcquireSerializesConcurrentCallers(t *testing.T) {
	c := New(60, 1024)

	var wg sync.WaitGroup
	var active int32
	var sawOverlap bool
	var mu sync.Mutex

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Acquire()
			active++
			if active > 1 {
				mu.Lock()
				sawOverlap = true
				mu.Unlock()
			}
			time.Sleep(time.Millisecond)
			active--
			c.Release()
		}()
	}

	wg.Wait()
	assert.False(t, sawOverlap)
}
