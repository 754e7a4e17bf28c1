package epilog

import (
	"github.com/cuemby/warren/internal/jobspec"
	"github.com/rs/zerolog"
)

// Kicker wakes the scheduler loop out of its idle wait (spec.md §4.7 "the
// scheduler is kicked"). Out of scope for this module.
type Kicker interface {
	Kick()
}

// Requeuer is the external job-control collaborator for requeuing or
// killing a job (spec.md §6). Out of scope for this module.
type Requeuer interface {
	Requeue(job *jobspec.Job) error
	Kill(job *jobspec.Job) error
}

// Interlock implements the epilog/prolog completion handling (spec.md
// §4.7). Prolog and epilog themselves run detached from the scheduler
// loop; Interlock's methods are called from that detached context and must
// tolerate arbitrary interleaving with the scheduler tick.
type Interlock struct {
	kicker Kicker
	rq     Requeuer
	logger zerolog.Logger
}

// NewInterlock constructs an Interlock.
func NewInterlock(kicker Kicker, rq Requeuer, logger zerolog.Logger) *Interlock {
	return &Interlock{kicker: kicker, rq: rq, logger: logger}
}

// EpilogFinished handles an epilog script completing for job. If no nodes
// remain allocated to it, the Completing flag clears and the scheduler is
// kicked so it can reconsider the freed capacity (spec.md §4.7).
func (i *Interlock) EpilogFinished(job *jobspec.Job, remainingNodes int) {
	if remainingNodes > 0 {
		return
	}
	job.Completing = false
	if i.kicker != nil {
		i.kicker.Kick()
	}
}

// PrologFailed handles a failed prolog for job: the first failure requeues
// it; a second failure (or a requeue attempt that itself errors) kills the
// job instead (spec.md §4.7, §4.8 "Prolog failure").
func (i *Interlock) PrologFailed(job *jobspec.Job) error {
	if !job.PrologRequeued {
		if err := i.rq.Requeue(job); err == nil {
			job.PrologRequeued = true
			return nil
		}
		i.logger.Warn().Str("job_id", job.ID).Msg("prolog requeue failed, killing job")
	}
	return i.rq.Kill(job)
}
