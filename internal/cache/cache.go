// Package cache implements the process-wide single-slot response
// cache (spec.md §4.F): one byte buffer guarded by a CAS lock word,
// stamped with a validity deadline at the end of a successful
// miss-path build.
package cache

import (
	"sync/atomic"
	"time"
)

const (
	stateFree uint32 = iota
	stateInUse

	// maxCacheSize is the hard cap on configured cache size
	// (PROMETHEUS_MAX_CACHE_SIZE in the original).
	maxCacheSize = 10 * 1024 * 1024
	// defaultCacheSize is used when caching is enabled but no explicit
	// size was configured.
	defaultCacheSize = 256 * 1024

	lockRetryInterval = time.Millisecond
)

// Cache is a single-slot response cache. Zero value is not usable; use
// New.
type Cache struct {
	lock uint32

	maxAge     int64 // seconds; 0 disables caching
	validUntil int64 // unix seconds; 0 means invalid

	data []byte
}

// New allocates a cache sized per maxSize (bytes, 0 = default),
// bounded by maxCacheSize, active only while maxAge > 0.
func New(maxAge int64, maxSize int) *Cache {
	c := &Cache{maxAge: maxAge}

	if maxAge <= 0 {
		return c
	}

	size := defaultCacheSize
	if maxSize > 0 {
		size = maxSize
		if size > maxCacheSize {
			size = maxCacheSize
		}
	}

	c.data = make([]byte, 0, size)

	return c
}

// Configured reports whether caching is enabled for this instance.
func (c *Cache) Configured() bool {
	return c.maxAge > 0
}

// Acquire spins on the CAS lock until it is held, sleeping
// lockRetryInterval between attempts. Callers must call Release when
// done.
func (c *Cache) Acquire() {
	for !atomic.CompareAndSwapUint32(&c.lock, stateFree, stateInUse) {
		time.Sleep(lockRetryInterval)
	}
}

// Release returns the lock to the free state.
func (c *Cache) Release() {
	atomic.StoreUint32(&c.lock, stateFree)
}

// Valid reports whether the cached bytes may be served as-is at time
// now. Must be called while holding the lock.
func (c *Cache) Valid(now time.Time) bool {
	return c.Configured() && c.validUntil != 0 && now.Unix() <= c.validUntil && len(c.data) > 0
}

// Bytes returns the cached response body. Must be called while
// holding the lock.
func (c *Cache) Bytes() []byte {
	return c.data
}

// Invalidate zeroes the buffer and clears the validity deadline. Must
// be called while holding the lock.
func (c *Cache) Invalidate() {
	c.data = c.data[:0]
	c.validUntil = 0
}

// Reset is the external trigger hook (spec.md §4.1): it acquires the
// lock and unconditionally invalidates the cache.
func (c *Cache) Reset() {
	c.Acquire()
	defer c.Release()
	c.Invalidate()
}

// Append adds data to the cache buffer. If appending would overflow
// capacity, the cache is invalidated and false is returned; the caller
// keeps streaming its own response regardless. Must be called while
// holding the lock.
func (c *Cache) Append(data []byte) bool {
	if !c.Configured() {
		return false
	}

	if len(c.data)+len(data) > cap(c.data) {
		c.Invalidate()
		return false
	}

	c.data = append(c.data, data...)
	return true
}

// Finalize stamps the cache with a new validity deadline at the end of
// a successful miss-path build. Must be called while holding the lock.
func (c *Cache) Finalize(now time.Time) bool {
	if !c.Configured() {
		return false
	}

	c.validUntil = now.Unix() + c.maxAge
	return c.validUntil > now.Unix()
}
