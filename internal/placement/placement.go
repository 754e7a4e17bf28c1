// Package placement implements the Placement Driver (spec.md §4.1 step 5/7,
// §4.5 caller side, component E): translating a candidate job and an
// available-node bitmap into a call against the external node selector,
// and mapping its verdict onto the scheduling outcomes the Main Scheduler
// Loop reacts to.
package placement

import (
	"github.com/cuemby/warren/internal/jobspec"
	"github.com/rs/zerolog"
)

// SelectorOutcome is the node selector's own verdict (spec.md §6,
// "select_g_job_test... returning {ok, busy, reservation_busy,
// unavailable}").
type SelectorOutcome int

const (
	SelectorOK SelectorOutcome = iota
	SelectorBusy
	SelectorReservationBusy
	SelectorUnavailable
)

// SelectMode distinguishes a real placement from a dry-run test.
type SelectMode int

const (
	ModeRun SelectMode = iota
	ModeTest
	ModeWillRun
)

// Selector is the external node-selection collaborator (spec.md §6,
// "select_g_job_test"). It is out of scope for this module — topology-aware
// node selection is explicitly a Non-goal (spec.md §1) — and is injected by
// the surrounding system.
type Selector interface {
	Test(job *jobspec.Job, partition *jobspec.Partition, avail *jobspec.NodeBitmap, minNodes, maxNodes, reqNodes int, mode SelectMode) (SelectorOutcome, *jobspec.NodeBitmap, []string, error)
}

// Outcome is what the Main Scheduler Loop does next (spec.md §4.1 step 7).
type Outcome int

const (
	Success Outcome = iota
	NodesBusy
	ReservationBusy
	ReservationNotUsable
	NeverRunnable
	ConfigUnavailable
)

// Driver wraps a Selector with the structural feasibility check and outcome
// translation spec.md §4.1 describes.
type Driver struct {
	selector Selector
	logger   zerolog.Logger
}

// NewDriver constructs a Driver over the given Selector.
func NewDriver(selector Selector, logger zerolog.Logger) *Driver {
	return &Driver{selector: selector, logger: logger}
}

// Place attempts to start job on partition within the nodes available this
// cycle. It returns the chosen node bitmap and any preemptee job ids the
// selector identified as needing to make room.
func (d *Driver) Place(job *jobspec.Job, partition *jobspec.Partition, avail *jobspec.NodeBitmap) (Outcome, *jobspec.NodeBitmap, []string, error) {
	if job.Resources.MinNodes > 0 && partition.Nodes.Count() < job.Resources.MinNodes {
		// The partition could never satisfy this request, regardless of
		// transient availability (spec.md §4.1 step 7 "Never-Runnable").
		return NeverRunnable, nil, nil, nil
	}

	minNodes := job.Resources.MinNodes
	if minNodes == 0 {
		minNodes = 1
	}
	maxNodes := job.Resources.MaxNodes
	if maxNodes == 0 {
		maxNodes = minNodes
	}
	reqNodes := minNodes

	outcome, chosen, preemptees, err := d.selector.Test(job, partition, avail, minNodes, maxNodes, reqNodes, ModeRun)
	if err != nil {
		return ConfigUnavailable, nil, nil, err
	}

	switch outcome {
	case SelectorOK:
		return Success, chosen, preemptees, nil
	case SelectorBusy:
		return NodesBusy, nil, nil, nil
	case SelectorReservationBusy:
		return ReservationBusy, nil, nil, nil
	case SelectorUnavailable:
		return ConfigUnavailable, nil, nil, nil
	default:
		return ConfigUnavailable, nil, nil, nil
	}
}
