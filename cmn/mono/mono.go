// Package mono provides a monotonic time source used to measure tick
// intervals and maintenance timeouts. time.Now() already carries a
// monotonic reading on every supported platform, so there's no reason
// to reach past the standard library in code meant to be imported by
// others.
package mono

import "time"

var start = time.Now()

// NanoTime returns nanoseconds elapsed since the package was loaded.
// Only meaningful relative to other NanoTime() calls within the same
// process; never compare it across processes or persist it.
func NanoTime() int64 {
	return time.Since(start).Nanoseconds()
}

// Since returns the elapsed duration since a NanoTime() reading.
func Since(t int64) time.Duration {
	return time.Duration(NanoTime() - t)
}
