package queue

import (
	"sort"

	"github.com/cuemby/warren/internal/jobspec"
)

// PreemptCheck reports whether a can preempt b (spec.md §4.5's policy
// predicate, injected here only for ordering purposes per spec.md §4.2
// rule 1).
type PreemptCheck func(a, b *jobspec.Job) bool

// PartitionTier resolves a partition's priority tier by name.
type PartitionTier func(partition string) int32

// Sort imposes the total order from spec.md §4.2, highest-priority first:
//
//  1. preemptCheck(a, b) => a before b
//  2. holds a reservation => before one that doesn't
//  3. higher partition priority tier => before lower
//  4. higher per-partition job priority => before lower
//  5. earlier submit time => before later, then lower job id => before
//     higher (stable submission-order tie-break)
func Sort(candidates []Candidate, preemptCheck PreemptCheck, tier PartitionTier) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		if preemptCheck != nil {
			if preemptCheck(a.Job, b.Job) {
				return true
			}
			if preemptCheck(b.Job, a.Job) {
				return false
			}
		}

		if a.HasReservation != b.HasReservation {
			return a.HasReservation
		}

		if tier != nil {
			ta, tb := tier(a.Partition), tier(b.Partition)
			if ta != tb {
				return ta > tb
			}
		}

		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}

		if !a.Job.Timing.Submit.Equal(b.Job.Timing.Submit) {
			return a.Job.Timing.Submit.Before(b.Job.Timing.Submit)
		}
		return a.Job.ID < b.Job.ID
	})
}
