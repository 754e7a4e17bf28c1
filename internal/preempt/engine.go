package preempt

import (
	"sort"
	"time"

	"github.com/cuemby/warren/internal/jobspec"
	"github.com/rs/zerolog"
)

// PolicyCheck is the injected `preempt_check(preemptor, preemptee)` predicate
// (spec.md §4.5) — typically priority-based across partitions or an
// explicit preempt-partition list. Out of scope for this module.
type PolicyCheck func(preemptor, preemptee *jobspec.Job) bool

// AccountingExempt reports whether an accounting policy exempts a running
// job from preemption (spec.md §4.5 "accounting-policy exemption"). Out of
// scope for this module.
type AccountingExempt func(job *jobspec.Job) bool

// ReservationLookup resolves the reservation (if any) that a running job's
// nodes were placed under, so the engine can honor the "reservation
// borrowing" override (spec.md §4.5). Out of scope for this module.
type ReservationLookup func(job *jobspec.Job) *jobspec.Reservation

// Params configures one candidate-enumeration call.
type Params struct {
	// MinExemptPriority: a preemptee above this priority is exempt.
	MinExemptPriority uint32
	// YoungestFirst sorts victims by start-time descending instead of the
	// default priority-ascending order.
	YoungestFirst bool
}

// Engine implements the Preemption Engine (spec.md §4.5, component F).
type Engine struct {
	policy           PolicyCheck
	accountingExempt AccountingExempt
	logger           zerolog.Logger
}

// NewEngine constructs an Engine over the given policy collaborators.
func NewEngine(policy PolicyCheck, accountingExempt AccountingExempt, logger zerolog.Logger) *Engine {
	return &Engine{policy: policy, accountingExempt: accountingExempt, logger: logger}
}

// Candidates enumerates and orders the preemptee candidates for preemptor
// out of running, applying every filter spec.md §4.5 names, then returns
// them sorted so the highest-loss victim is last.
func (e *Engine) Candidates(preemptor *jobspec.Job, running []*jobspec.Job, preemptorNodes *jobspec.NodeBitmap, params Params, resvLookup ReservationLookup, now time.Time) []*jobspec.Job {
	var out []*jobspec.Job

	for _, cand := range running {
		if cand.State != jobspec.JobRunning && cand.State != jobspec.JobSuspended {
			continue
		}
		if cand.ID == preemptor.ExpandingJobID {
			continue
		}

		if e.isBorrowingReservationTime(cand, resvLookup, now) {
			out = append(out, cand)
			continue
		}

		if !overlaps(preemptor, cand, preemptorNodes) {
			continue
		}
		if e.isExempt(cand, params) {
			continue
		}
		if e.policy != nil && !e.policy(preemptor, cand) {
			continue
		}
		out = append(out, cand)
	}

	sortVictims(out, params.YoungestFirst)
	return out
}

func (e *Engine) isBorrowingReservationTime(cand *jobspec.Job, resvLookup ReservationLookup, now time.Time) bool {
	if resvLookup == nil {
		return false
	}
	resv := resvLookup(cand)
	if resv == nil {
		return false
	}
	return resv.Nodes.Overlaps(cand.NodeBitmap) && !now.Before(resv.End)
}

func (e *Engine) isExempt(cand *jobspec.Job, params Params) bool {
	if cand.Priority > params.MinExemptPriority {
		return true
	}
	if e.accountingExempt != nil && e.accountingExempt(cand) {
		return true
	}
	if cand.IsHetJobLeader() {
		for _, c := range cand.HetJobComponents {
			if c.PreemptExempt {
				return true
			}
		}
	}
	return false
}

func overlaps(preemptor, cand *jobspec.Job, preemptorNodes *jobspec.NodeBitmap) bool {
	if preemptorNodes.Overlaps(cand.NodeBitmap) {
		return true
	}
	return licensesOverlap(preemptor.Licenses, cand.Licenses)
}

func licensesOverlap(a, b []jobspec.LicenseRequest) bool {
	names := make(map[string]struct{}, len(a))
	for _, r := range a {
		names[r.Name] = struct{}{}
	}
	for _, r := range b {
		if _, ok := names[r.Name]; ok {
			return true
		}
	}
	return false
}

func sortVictims(jobs []*jobspec.Job, youngestFirst bool) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if youngestFirst {
			return jobs[i].Timing.Start.After(jobs[j].Timing.Start)
		}
		return jobs[i].Priority < jobs[j].Priority
	})
}
