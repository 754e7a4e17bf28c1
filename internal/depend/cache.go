package depend

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cuemby/warren/internal/jobspec"
)

// Cache memoises a dependency Verdict by (job_id, original_dependency_string)
// within a single scheduling tick (spec.md §4.3 "Cache"). Callers create a
// fresh Cache per cycle. The key is the evaluated job's own id, so tasks of
// one array, which have distinct ids, each get their own entry even when
// they share a dependency string.
//
// The repeated lookups this guards against come from queue.Build emitting
// one Candidate per (job, partition) pair for a multi-partition submission
// (spec.md §4.2): the same job, with the same Dependencies, is handed to
// processCandidate once per alternate partition, so without memoization
// its dependency list is re-evaluated against the target lookup once per
// partition instead of once per job.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]Verdict
}

type cacheKey struct {
	jobID  string
	depStr string
}

// NewCache returns an empty per-cycle cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]Verdict)}
}

// Get returns a memoised verdict, if any.
func (c *Cache) Get(jobID, depStr string) (Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[cacheKey{jobID, depStr}]
	return v, ok
}

// Put stores a verdict for later lookups this cycle.
func (c *Cache) Put(jobID, depStr string, v Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{jobID, depStr}] = v
}

// DepString renders job's dependency list into the stable string Cache keys
// on, standing in for the "original_dependency_string" the submission
// carried (spec.md §4.3 "Cache"). Two calls with equal Dependencies always
// produce equal strings.
func DepString(deps []jobspec.Dependency) string {
	if len(deps) == 0 {
		return ""
	}
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = string(d.Type) + ":" + d.TargetJobID + ":" + strconv.Itoa(d.TargetArrayTaskID)
	}
	return strings.Join(parts, ",")
}

// EvaluateCached behaves like Evaluate but consults cache first, keyed on
// job's id and its rendered dependency string, and stores the result back
// for the rest of the cycle. A nil cache makes it equivalent to calling
// Evaluate directly.
func EvaluateCached(job *jobspec.Job, lookup TargetLookup, cache *Cache) Verdict {
	if cache == nil {
		return Evaluate(job, lookup)
	}
	depStr := DepString(job.Dependencies)
	if v, ok := cache.Get(job.ID, depStr); ok {
		return v
	}
	v := Evaluate(job, lookup)
	cache.Put(job.ID, depStr, v)
	return v
}
