package interp

// Accel caches the interval found by the last lookup so that runs of nearby
// queries skip the binary search. It counts cache hits and misses.
//
// An Accel is not safe for concurrent use. Use one per goroutine, and call
// Reset before moving it to a different table.
type Accel struct {
	cache  int
	hits   uint64
	misses uint64
}

// NewAccel returns an empty accelerator.
func NewAccel() *Accel {
	return &Accel{}
}

// Find returns the index i such that xa[i] <= x < xa[i+1], clamped to
// [0, len(xa)-2]. xa must be strictly increasing with at least two entries.
func (a *Accel) Find(xa []float64, x float64) int {
	last := len(xa) - 1
	if a.cache >= last {
		a.cache = 0
	}

	switch i := a.cache; {
	case x < xa[i]:
		a.misses++
		a.cache = Bsearch(xa, x, 0, i)
	case x >= xa[i+1]:
		a.misses++
		a.cache = Bsearch(xa, x, i, last)
	default:
		a.hits++
	}
	return a.cache
}

// Reset clears the cached index and the counters.
func (a *Accel) Reset() {
	*a = Accel{}
}

// Hits returns the number of lookups served from the cache.
func (a *Accel) Hits() uint64 { return a.hits }

// Misses returns the number of lookups that needed a search.
func (a *Accel) Misses() uint64 { return a.misses }

// Bsearch returns the index i in [lo, hi) with xa[i] <= x < xa[i+1],
// searching only between xa[lo] and xa[hi]. Points below xa[lo] map to lo
// and points at or above xa[hi] map to hi-1.
func Bsearch(xa []float64, x float64, lo, hi int) int {
	for hi > lo+1 {
		i := (hi + lo) / 2
		if xa[i] > x {
			hi = i
		} else {
			lo = i
		}
	}
	return lo
}
