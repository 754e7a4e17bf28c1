package gang

import "github.com/cuemby/warren/internal/jobspec"

// ResumeSuspender is the external job-control collaborator for resuming and
// suspending jobs directly (spec.md §6). Out of scope for this module.
type ResumeSuspender interface {
	Resume(job *jobspec.Job) error
	Suspend(job *jobspec.Job) error
}

// PreemptQueue defers a suspend to the preempt engine instead of the gang
// slicer performing it directly (spec.md §4.6 "Cycle", "delegated to the
// preempt-job-queue... preserving the preempt-mode contract").
type PreemptQueue interface {
	Enqueue(job *jobspec.Job)
}

// ShadowedByNonSuspendPreempt reports whether job is currently shadowed by
// a preemption whose mode isn't Suspend. Out of scope for this module.
type ShadowedByNonSuspendPreempt func(job *jobspec.Job) bool

// Rotate performs one sched_time_slice cycle (spec.md §4.6 "Cycle"): Active
// jobs move to the back of the job list, Filler jobs reset to NoActive, the
// row is rebuilt, and the resulting Active/NoActive diff is applied as
// resumes and suspends.
func (r *Row) Rotate(rs ResumeSuspender, pq PreemptQueue, shadowed ShadowedByNonSuspendPreempt) error {
	r.rotateJobList()
	r.Build()
	return r.applyTransitions(rs, pq, shadowed)
}

// rotateJobList moves Active jobs to the back of the list, preserving their
// relative order; every other job stays at its current position (only its
// state changes, Filler flipping to NoActive in place) so insertion order is
// preserved across reorderings (spec.md §3, §8).
func (r *Row) rotateJobList() {
	rest := make([]*jobspec.Job, 0, len(r.JobList))
	var active []*jobspec.Job
	for _, job := range r.JobList {
		entry := r.Entries[job.ID]
		if entry == nil {
			rest = append(rest, job)
			continue
		}
		switch entry.State {
		case jobspec.GangActive:
			active = append(active, job)
		case jobspec.GangFiller:
			entry.State = jobspec.GangNoActive
			rest = append(rest, job)
		default:
			rest = append(rest, job)
		}
	}
	r.JobList = append(rest, active...)
}

func (r *Row) applyTransitions(rs ResumeSuspender, pq PreemptQueue, shadowed ShadowedByNonSuspendPreempt) error {
	for _, job := range r.JobList {
		entry := r.Entries[job.ID]
		if entry == nil {
			continue
		}
		switch {
		case entry.State == jobspec.GangActive && entry.WasSuspended:
			if err := rs.Resume(job); err != nil {
				return err
			}
			entry.WasSuspended = false
		case entry.State == jobspec.GangNoActive && !entry.WasSuspended:
			if shadowed != nil && shadowed(job) {
				pq.Enqueue(job)
				continue
			}
			if err := rs.Suspend(job); err != nil {
				return err
			}
			entry.WasSuspended = true
		}
	}
	return nil
}
