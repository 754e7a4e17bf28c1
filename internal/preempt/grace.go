package preempt

import (
	"fmt"
	"time"

	"github.com/cuemby/warren/internal/jobspec"
)

// Signaler is the external job-control collaborator (spec.md §6): sending
// signals, requeuing, suspending, and killing a running job are out of
// scope for this module and are injected by the surrounding system.
type Signaler interface {
	Suspend(job *jobspec.Job) error
	Requeue(job *jobspec.Job) error
	Kill(job *jobspec.Job) error
	Signal(job *jobspec.Job, sig string) error
}

// Result is the outcome of one Engine.Preempt attempt.
type Result int

const (
	ResultDone Result = iota
	ResultGraceActive
	ResultFellBackToKill
)

// Preempt carries out one preempt attempt against victim in the given mode,
// dispatching to Suspend/Requeue directly and routing Cancel through the
// grace-period state machine (spec.md §4.5). Any mode failure falls back
// to a kill.
func (e *Engine) Preempt(victim *jobspec.Job, mode jobspec.PreemptMode, graceTime time.Duration, warn jobspec.WarnSignal, now time.Time, sig Signaler) (Result, error) {
	switch mode {
	case jobspec.PreemptSuspend:
		if err := sig.Suspend(victim); err != nil {
			return e.fallbackKill(victim, sig, err)
		}
		victim.Timing.Suspend = now
		return ResultDone, nil
	case jobspec.PreemptRequeue:
		if err := sig.Requeue(victim); err != nil {
			return e.fallbackKill(victim, sig, err)
		}
		return ResultDone, nil
	default:
		return e.cancel(victim, graceTime, warn, now, sig)
	}
}

// cancel implements the grace-period state machine: the first attempt
// starts the grace window and warns the victim instead of killing it;
// later attempts proceed once the window has elapsed (spec.md §4.5).
func (e *Engine) cancel(victim *jobspec.Job, graceTime time.Duration, warn jobspec.WarnSignal, now time.Time, sig Signaler) (Result, error) {
	if graceTime > 0 {
		if victim.Timing.Preempt.IsZero() {
			victim.Timing.Preempt = now
			deadline := victim.Timing.Preempt.Add(graceTime)
			if victim.Timing.End.IsZero() || deadline.Before(victim.Timing.End) {
				victim.Timing.End = deadline
			}
			if warn.Signal != "" {
				if err := sig.Signal(victim, "SIGCONT"); err != nil {
					e.logger.Warn().Err(err).Str("job_id", victim.ID).Msg("grace SIGCONT failed")
				}
				if err := sig.Signal(victim, warn.Signal); err != nil {
					e.logger.Warn().Err(err).Str("job_id", victim.ID).Msg("grace warn signal failed")
				}
			}
			return ResultGraceActive, nil
		}
		if now.Before(victim.Timing.End) {
			return ResultGraceActive, nil
		}
	}
	if err := sig.Kill(victim); err != nil {
		return ResultDone, fmt.Errorf("kill victim %s: %w", victim.ID, err)
	}
	return ResultDone, nil
}

func (e *Engine) fallbackKill(victim *jobspec.Job, sig Signaler, cause error) (Result, error) {
	e.logger.Warn().Err(cause).Str("job_id", victim.ID).Msg("preempt mode failed, falling back to kill")
	if err := sig.Kill(victim); err != nil {
		return ResultFellBackToKill, fmt.Errorf("fallback kill victim %s: %w", victim.ID, err)
	}
	return ResultFellBackToKill, nil
}

// HetJobOutOfGrace reports whether every component's grace window (if any
// is active) has elapsed, so the leader may proceed to a kill (spec.md
// §4.5 "For hetjob leaders, every component must be out of grace").
func HetJobOutOfGrace(components []*jobspec.Job, now time.Time) bool {
	for _, c := range components {
		if !c.Timing.Preempt.IsZero() && now.Before(c.Timing.End) {
			return false
		}
	}
	return true
}
