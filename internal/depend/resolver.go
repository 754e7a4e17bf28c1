package depend

import (
	"github.com/cuemby/warren/internal/jobspec"
)

// TargetLookup resolves the job records a dependency list references. It is
// the external collaborator spec.md §1 calls "job record... persistence" —
// this package only reads through it.
type TargetLookup interface {
	// Job returns the target job record, if known.
	Job(id string) (*jobspec.Job, bool)
	// ArrayTasks returns every task belonging to array job arrayJobID,
	// used by the wildcard aggregate helpers (spec.md §4.3).
	ArrayTasks(arrayJobID string) []*jobspec.Job
	// SingletonConflict reports whether a pending/running/suspended job
	// with the same owner+name and a lower id than selfJobID exists.
	SingletonConflict(owner, name, selfJobID string) bool
}

// Status is the per-entry or overall verdict of a dependency evaluation.
type Status int

const (
	Ready Status = iota
	Waiting
	Failed
)

// Verdict is the result of evaluating a job's full dependency list.
type Verdict struct {
	Status Status
	Reason string // set when Status == Waiting, for the job's reason field
}

// Evaluate resolves every dependency entry of job against lookup. Entries
// are ANDed: Ready only if every entry is ready; Failed as soon as one
// entry propagates failure (spec.md §4.3 "Failure propagation"); otherwise
// Waiting.
//
// As a side effect, entries of type `expand` set job.ExpandingJobID and
// copy the target's resource request (spec.md §4.3, "copies GRES spec").
func Evaluate(job *jobspec.Job, lookup TargetLookup) Verdict {
	if len(job.Dependencies) == 0 {
		return Verdict{Status: Ready}
	}

	allReady := true
	for _, dep := range job.Dependencies {
		st := evalOne(job, dep, lookup)
		switch st {
		case Failed:
			return Verdict{Status: Failed, Reason: "dependency never satisfiable"}
		case Waiting:
			allReady = false
		}
	}
	if allReady {
		return Verdict{Status: Ready}
	}
	return Verdict{Status: Waiting, Reason: "Dependency"}
}

func evalOne(job *jobspec.Job, dep jobspec.Dependency, lookup TargetLookup) Status {
	if dep.Type == jobspec.DepSingleton {
		if lookup.SingletonConflict(job.Owner, job.Name, job.ID) {
			return Waiting
		}
		return Ready
	}

	if dep.TargetArrayTaskID == jobspec.WildcardTask {
		if tasks := lookup.ArrayTasks(dep.TargetJobID); len(tasks) > 0 {
			return evalWildcard(dep.Type, tasks)
		}
	}

	target, ok := lookup.Job(dep.TargetJobID)
	if !ok {
		// Unknown target: cannot be satisfied yet, not a hard failure.
		return Waiting
	}

	switch dep.Type {
	case jobspec.DepAfter:
		if !target.IsPending() {
			return Ready
		}
		return Waiting

	case jobspec.DepAfterAny:
		if target.State.Terminal() {
			return Ready
		}
		return Waiting

	case jobspec.DepAfterOK:
		if target.State.Terminal() {
			if target.State == jobspec.JobComplete && target.ExitCode == 0 {
				return Ready
			}
			return Failed
		}
		return Waiting

	case jobspec.DepAfterNotOK:
		if target.SpecialExit {
			return Ready
		}
		if target.State.Terminal() {
			if target.State == jobspec.JobFailed || target.ExitCode != 0 {
				return Ready
			}
			return Failed
		}
		return Waiting

	case jobspec.DepExpand:
		if target.State == jobspec.JobRunning && target.QoS == job.QoS && target.Partition == job.Partition {
			job.ExpandingJobID = target.ID
			job.Resources = target.Resources
			return Ready
		}
		return Waiting

	default:
		return Waiting
	}
}

// evalWildcard implements spec.md §4.3's array-wildcard rule: computed only
// from the aggregate helpers, never from individual task ids.
func evalWildcard(depType jobspec.DepType, tasks []*jobspec.Job) Status {
	completed := arrayCompleted(tasks)
	allOK := arrayComplete(tasks)

	switch depType {
	case jobspec.DepAfter:
		if arrayPending(tasks) {
			return Waiting
		}
		return Ready
	case jobspec.DepAfterAny:
		if completed {
			return Ready
		}
		return Waiting
	case jobspec.DepAfterOK:
		if !completed {
			return Waiting
		}
		if allOK {
			return Ready
		}
		return Failed
	case jobspec.DepAfterNotOK:
		if !completed {
			return Waiting
		}
		if !allOK {
			return Ready
		}
		return Failed
	default:
		return Waiting
	}
}

// arrayCompleted reports whether every task of the array has reached a
// terminal state.
func arrayCompleted(tasks []*jobspec.Job) bool {
	for _, t := range tasks {
		if !t.State.Terminal() {
			return false
		}
	}
	return true
}

// arrayComplete reports whether every task completed successfully.
func arrayComplete(tasks []*jobspec.Job) bool {
	for _, t := range tasks {
		if t.State != jobspec.JobComplete || t.ExitCode != 0 {
			return false
		}
	}
	return true
}

// arrayPending reports whether any task is still pending.
func arrayPending(tasks []*jobspec.Job) bool {
	for _, t := range tasks {
		if t.IsPending() {
			return true
		}
	}
	return false
}
