package queue

import (
	"time"

	"github.com/cuemby/warren/internal/jobspec"
	"github.com/rs/zerolog"
)

// cadenceCheck is how often (in jobs examined) the builder re-checks the
// wall-clock budget, taken from the original build_job_queue's 100-job
// cadence (spec.md §4.2, SPEC_FULL "SUPPLEMENTED FEATURES").
const cadenceCheck = 100

// Candidate is one (job, partition, priority) triple the builder emits. A
// multi-partition submission produces one Candidate per candidate
// partition (spec.md §4.2).
type Candidate struct {
	Job            *jobspec.Job
	Partition      string
	Priority       uint32
	HasReservation bool
}

// Clock abstracts time.Now for deterministic tests of the budget cutoff.
type Clock func() time.Time

// Build walks jobs once, emitting a Candidate per eligible (job, partition)
// pair. It aborts early — returning whatever it has built so far — once
// buildTimeout has elapsed, checked only every cadenceCheck jobs to keep
// the check itself cheap (spec.md §4.2).
func Build(jobs []*jobspec.Job, buildTimeout time.Duration, clock Clock, logger zerolog.Logger) []Candidate {
	if clock == nil {
		clock = time.Now
	}
	start := clock()
	var candidates []Candidate

	tested := 0
	for _, job := range jobs {
		if !job.IsPending() || job.Completing {
			continue
		}
		tested++
		if tested%cadenceCheck == 0 && buildTimeout > 0 && clock().Sub(start) > buildTimeout {
			logger.Warn().Int("tested", tested).Msg("queue build aborted: timeout exceeded")
			return candidates
		}

		candidates = append(candidates, jobCandidates(job)...)
	}
	logger.Debug().Int("tested", tested).Int("candidates", len(candidates)).Msg("queue build complete")
	return candidates
}

func jobCandidates(job *jobspec.Job) []Candidate {
	hasResv := job.Reservation != ""

	if len(job.AltPartitions) == 0 {
		return []Candidate{{
			Job:            job,
			Partition:      job.Partition,
			Priority:       priorityFor(job, job.Partition),
			HasReservation: hasResv,
		}}
	}

	parts := make([]string, 0, len(job.AltPartitions)+1)
	if job.Partition != "" {
		parts = append(parts, job.Partition)
	}
	parts = append(parts, job.AltPartitions...)

	out := make([]Candidate, 0, len(parts))
	for _, p := range parts {
		out = append(out, Candidate{
			Job:            job,
			Partition:      p,
			Priority:       priorityFor(job, p),
			HasReservation: hasResv,
		})
	}
	return out
}

// priorityFor returns the per-partition priority from job's priority
// vector when present, else the scalar job priority (spec.md §4.2).
func priorityFor(job *jobspec.Job, partition string) uint32 {
	if job.PartitionPriority != nil {
		if p, ok := job.PartitionPriority[partition]; ok {
			return p
		}
	}
	return job.Priority
}
