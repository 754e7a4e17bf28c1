package depend

import (
	"testing"

	"github.com/cuemby/warren/internal/jobspec"
	"github.com/stretchr/testify/assert"
)

func TestCheckCycleDetectsDirectCycle(t *testing.T) {
	// Scenario 4 from spec.md §8: job 100 depends on 101, 101 depends on
	// 100; adding "afterok:101" to 100 must be rejected as circular.
	lookup := &fakeLookup{jobs: map[string]*jobspec.Job{
		"101": {ID: "101", Dependencies: []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "100"}}},
	}}
	candidate := []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "101"}}

	assert.True(t, CheckCycle("100", candidate, lookup, 10))
}

func TestCheckCycleDetectsIndirectCycleThroughAChain(t *testing.T) {
	// 100 -> 101 -> 102 -> 100.
	lookup := &fakeLookup{jobs: map[string]*jobspec.Job{
		"101": {ID: "101", Dependencies: []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "102"}}},
		"102": {ID: "102", Dependencies: []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "100"}}},
	}}
	candidate := []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "101"}}

	assert.True(t, CheckCycle("100", candidate, lookup, 10))
}

func TestCheckCycleAllowsAcyclicChain(t *testing.T) {
	lookup := &fakeLookup{jobs: map[string]*jobspec.Job{
		"101": {ID: "101", Dependencies: []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "102"}}},
		"102": {ID: "102"},
	}}
	candidate := []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "101"}}

	assert.False(t, CheckCycle("100", candidate, lookup, 10))
}

func TestCheckCycleBoundedDepthReturnsFalseBeyondMaxDepend(t *testing.T) {
	// §8 invariant: "Dependency cycle detection is bounded: for any chain
	// of length > max_depend_depth, detection returns FALSE (not a
	// crash)." Build a cycle whose length exceeds maxDepth and confirm it
	// is reported as acyclic rather than detected or hanging.
	lookup := &fakeLookup{jobs: map[string]*jobspec.Job{
		"1": {ID: "1", Dependencies: []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "2"}}},
		"2": {ID: "2", Dependencies: []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "3"}}},
		"3": {ID: "3", Dependencies: []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "0"}}},
	}}
	candidate := []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "1"}}

	assert.False(t, CheckCycle("0", candidate, lookup, 2), "chain of length 4 exceeds maxDepth 2")
}

func TestCheckCycleIgnoresSingletonEntries(t *testing.T) {
	lookup := &fakeLookup{}
	candidate := []jobspec.Dependency{{Type: jobspec.DepSingleton}}

	assert.False(t, CheckCycle("100", candidate, lookup, 10))
}

func TestCheckCycleStopsAtUnknownTarget(t *testing.T) {
	lookup := &fakeLookup{jobs: map[string]*jobspec.Job{}}
	candidate := []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "ghost"}}

	assert.False(t, CheckCycle("100", candidate, lookup, 10))
}
