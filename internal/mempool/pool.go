// Package mempool keeps size-classed buffers for the per-iteration arrays of
// the segmentation engine, which are as long as the image has pixels.
package mempool

import (
	"sync"
)

var (
	float64Pools sync.Map // key: size class (int), value: *sync.Pool
	boolPools    sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to a multiple of 1024, with 1024 as the minimum.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor[T any](pools *sync.Map, cls int) *sync.Pool {
	if p, ok := pools.Load(cls); ok {
		return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
	}
	p, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

func get[T any](pools *sync.Map, n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp, ok := poolFor[T](pools, cls).Get().(*[]T)
	if !ok || cap(*bp) < cls {
		return make([]T, n, cls)
	}
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

func put[T any](pools *sync.Map, buf []T) {
	if cap(buf) < 1024 {
		return
	}
	// Round down so a buffer never serves a class larger than itself.
	cls := cap(buf) / 1024 * 1024
	buf = buf[:cap(buf)]
	poolFor[T](pools, cls).Put(&buf)
}

// GetFloat64 returns a zeroed []float64 of length n. Return it with
// PutFloat64 when done.
func GetFloat64(n int) []float64 { return get[float64](&float64Pools, n) }

// PutFloat64 returns a buffer to the pool. It is safe to pass nil.
func PutFloat64(buf []float64) { put(&float64Pools, buf) }

// GetBool returns a zeroed []bool of length n. Return it with PutBool when
// done.
func GetBool(n int) []bool { return get[bool](&boolPools, n) }

// PutBool returns a buffer to the pool. It is safe to pass nil.
func PutBool(buf []bool) { put(&boolPools, buf) }
