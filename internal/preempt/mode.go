package preempt

import "github.com/cuemby/warren/internal/jobspec"

// ModeFor resolves a single job's preempt mode from its partition's
// configured mode and an optional QoS-level override, applying the
// Suspend > Requeue > Cancel hierarchy (spec.md §4.5). Cancel is the
// default when neither specifies a mode.
func ModeFor(partitionMode, qosMode jobspec.PreemptMode) jobspec.PreemptMode {
	switch {
	case partitionMode.Has(jobspec.PreemptSuspend) || qosMode.Has(jobspec.PreemptSuspend):
		return jobspec.PreemptSuspend
	case partitionMode.Has(jobspec.PreemptRequeue) || qosMode.Has(jobspec.PreemptRequeue):
		return jobspec.PreemptRequeue
	default:
		return jobspec.PreemptCancel
	}
}

// ModeForHetJob resolves the shared mode for a hetjob's components from
// each component's own resolved mode, in leader-then-sibling order: the
// first non-Cancel mode wins and propagates to every component (spec.md
// §4.5).
func ModeForHetJob(componentModes []jobspec.PreemptMode) jobspec.PreemptMode {
	for _, m := range componentModes {
		if m != jobspec.PreemptCancel {
			return m
		}
	}
	return jobspec.PreemptCancel
}
