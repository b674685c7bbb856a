package pipeline

import "sync"

// sharedCounters holds the aggregates spec.md section 5 says are "updated
// under one shared mutex (held briefly, only at accept/replace points
// inside AlignmentAccumulator)": total mapped reads, reads passing both the
// identity and coverage filters, and a per-database matched-read count.
//
// Modeled on cmd/bio-fusion/main.go's memStats: a small mutex-guarded
// struct updated from worker goroutines and read back by the coordinator
// once all workers finish.
type sharedCounters struct {
	mu sync.Mutex

	totalReadsMapped    int
	totalReadsMappedCov int
	matchedPerDB        map[int]int
}

func (c *sharedCounters) recordHit(dbNum int, passedIDAndCov bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.matchedPerDB == nil {
		c.matchedPerDB = map[int]int{}
	}
	c.totalReadsMapped++
	c.matchedPerDB[dbNum]++
	if passedIDAndCov {
		c.totalReadsMappedCov++
	}
}

func (c *sharedCounters) recordReplace(dbNum int, replacedDBNum int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.matchedPerDB == nil {
		c.matchedPerDB = map[int]int{}
	}
	c.matchedPerDB[dbNum]++
	if replacedDBNum != dbNum {
		c.matchedPerDB[replacedDBNum]--
	}
}

// Snapshot returns a stable copy of the counters, taken under the mutex.
// The pipeline's report pass does not call it.
func (c *sharedCounters) Snapshot() (totalMapped, totalMappedCov int, perDB map[int]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[int]int, len(c.matchedPerDB))
	for k, v := range c.matchedPerDB {
		cp[k] = v
	}
	return c.totalReadsMapped, c.totalReadsMappedCov, cp
}
