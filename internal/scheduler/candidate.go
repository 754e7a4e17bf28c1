package scheduler

import (
	"time"

	"github.com/cuemby/warren/internal/depend"
	"github.com/cuemby/warren/internal/jobspec"
	"github.com/cuemby/warren/internal/metrics"
	"github.com/cuemby/warren/internal/placement"
	"github.com/cuemby/warren/internal/queue"
)

type candidateOutcome int

const (
	outcomeSkippedFailedPartition candidateOutcome = iota
	outcomeSkippedDependency
	outcomeSkippedPolicy
	outcomeStarted
	outcomeNodesBusy
	outcomeReservationBusy
	outcomeNeverRunnable
	outcomeConfigUnavailable
)

// processCandidate applies spec.md §4.1 step 5's filter chain, in order,
// then hands the job to the Placement Driver and reacts to its outcome
// (step 7).
func (l *Loop) processCandidate(cand queue.Candidate, now time.Time) candidateOutcome {
	job := cand.Job

	if l.failedParts[cand.Partition] && job.RequiredNodes == nil {
		return outcomeSkippedFailedPartition
	}
	if job.Reservation != "" && l.failedResv[job.Reservation] {
		return outcomeSkippedFailedPartition
	}

	if verdict := depend.EvaluateCached(job, l.deps.Table, l.depCache); verdict.Status != depend.Ready {
		if verdict.Status == depend.Failed {
			l.failJob(job, jobspec.ReasonBadConstraints)
		} else {
			job.Reason = jobspec.ReasonDependency
		}
		return outcomeSkippedDependency
	}

	partition, ok := l.deps.Table.Partition(cand.Partition)
	if !ok || partition.State != jobspec.PartitionUp {
		job.Reason = jobspec.ReasonPartitionDown
		l.poisonPartition(cand.Partition, job, now)
		return outcomeSkippedFailedPartition
	}
	if l.deps.Policy.PartitionUsable != nil && !l.deps.Policy.PartitionUsable(partition) {
		job.Reason = jobspec.ReasonPolicyLimit
		l.poisonPartition(cand.Partition, job, now)
		return outcomeSkippedFailedPartition
	}
	if l.deps.Policy.AccountValid != nil && !l.deps.Policy.AccountValid(job) {
		job.Reason = jobspec.ReasonFailAccount
		return outcomeSkippedPolicy
	}
	if l.deps.Policy.QoSValid != nil && !l.deps.Policy.QoSValid(job) {
		job.Reason = jobspec.ReasonFailQOS
		return outcomeSkippedPolicy
	}

	avail := l.availableNodes(cand.Partition)
	if !supersetContains(avail, job.RequiredNodes) {
		job.Reason = jobspec.ReasonNodesBusy
		return outcomeSkippedPolicy
	}
	if !avail.Overlaps(partition.Nodes) {
		job.Reason = jobspec.ReasonNodesBusy
		l.poisonPartition(cand.Partition, job, now)
		return outcomeSkippedFailedPartition
	}

	var resv *jobspec.Reservation
	if job.Reservation != "" {
		r, ok := l.deps.Table.Reservation(job.Reservation)
		if !ok {
			job.Reason = jobspec.ReasonReservationBusy
			return outcomeSkippedPolicy
		}
		resv = r
		if resv.Nodes != nil && job.RequiredNodes != nil && resv.Nodes.Overlaps(job.RequiredNodes) {
			job.Reason = jobspec.ReasonReservationBusy
			return outcomeSkippedPolicy
		}
	}

	if l.deps.Licenses != nil {
		res, err := l.deps.Licenses.Allocate(job, resv, l.deps.Config.PreemptParams.ReclaimLicenses)
		if err != nil || !res.OK {
			job.Reason = jobspec.ReasonLicenses
			return outcomeSkippedPolicy
		}
	}

	outcome, chosen, preemptees, err := l.deps.Placement.Place(job, partition, avail)
	if err != nil {
		l.deps.Logger.Error().Err(err).Str("job_id", job.ID).Msg("placement call failed")
	}
	return l.applyPlacementOutcome(job, cand, partition, resv, outcome, chosen, preemptees, now)
}

func (l *Loop) applyPlacementOutcome(job *jobspec.Job, cand queue.Candidate, partition *jobspec.Partition, resv *jobspec.Reservation, outcome placement.Outcome, chosen *jobspec.NodeBitmap, preemptees []string, now time.Time) candidateOutcome {
	switch outcome {
	case placement.Success:
		if err := l.deps.Starter.Start(job, cand.Partition, chosen, preemptees); err != nil {
			l.deps.Logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to record job start")
			l.returnLicenses(job, resv)
			job.Reason = jobspec.ReasonConfigUnavailable
			return outcomeConfigUnavailable
		}
		l.promotePartition(job, cand.Partition)
		job.State = jobspec.JobRunning
		job.NodeBitmap = chosen
		job.Timing.Start = now
		job.Reason = jobspec.ReasonNone
		metrics.JobsStartedTotal.Inc()
		return outcomeStarted

	case placement.NodesBusy:
		l.returnLicenses(job, resv)
		job.Reason = jobspec.ReasonNodesBusy
		l.poisonPartition(cand.Partition, job, now)
		return outcomeNodesBusy

	case placement.ReservationBusy, placement.ReservationNotUsable:
		l.returnLicenses(job, resv)
		job.Reason = jobspec.ReasonReservationBusy
		if job.Reservation != "" {
			l.failedResv[job.Reservation] = true
		}
		l.restrictAvailExcludingReservation(cand.Partition, resv)
		return outcomeReservationBusy

	case placement.NeverRunnable:
		l.returnLicenses(job, resv)
		if !l.deps.Config.WikiCompat {
			job.State = jobspec.JobFailed
			job.Reason = jobspec.ReasonBadConstraints
			job.ExitCode = jobspec.NeverRunnableExitCode
			job.Priority = 0
			metrics.JobsFailedTotal.WithLabelValues(string(jobspec.ReasonBadConstraints)).Inc()
		}
		return outcomeNeverRunnable

	default: // ConfigUnavailable
		l.returnLicenses(job, resv)
		job.Reason = jobspec.ReasonConfigUnavailable
		return outcomeConfigUnavailable
	}
}

func (l *Loop) returnLicenses(job *jobspec.Job, resv *jobspec.Reservation) {
	if l.deps.Licenses != nil {
		l.deps.Licenses.Return(job, resv)
	}
}

// poisonPartition marks partition failed for the rest of the cycle, unless
// job is younger than bf_min_age_reserve (spec.md §4.1 step 6).
func (l *Loop) poisonPartition(partition string, job *jobspec.Job, now time.Time) {
	if l.deps.Config.BFMinAgeReserve > 0 && now.Sub(job.Timing.Submit) < l.deps.Config.BFMinAgeReserve {
		return
	}
	l.failedParts[partition] = true
}

// availableNodes returns this cycle's copy-on-enter available-node bitmap
// for partition, cloning from the live partition record on first access
// (spec.md §5 "Node bitmaps are copy-on-enter for a cycle").
func (l *Loop) availableNodes(partitionName string) *jobspec.NodeBitmap {
	if bm, ok := l.avail[partitionName]; ok {
		return bm
	}
	part, ok := l.deps.Table.Partition(partitionName)
	if !ok {
		return jobspec.NewNodeBitmap(0)
	}
	bm := part.Nodes.Clone()
	l.avail[partitionName] = bm
	return bm
}

func (l *Loop) restrictAvailExcludingReservation(partitionName string, resv *jobspec.Reservation) {
	if resv == nil || resv.Nodes == nil {
		return
	}
	l.availableNodes(partitionName).AndNot(resv.Nodes)
}

// promotePartition rebuilds job's partition list so chosen is first
// (spec.md §4.1 step 7 "Success"): if chosen came from the alternate set,
// it becomes primary and the prior primary moves into the alternates.
func (l *Loop) promotePartition(job *jobspec.Job, chosen string) {
	if job.Partition == chosen {
		return
	}
	filtered := make([]string, 0, len(job.AltPartitions))
	for _, p := range job.AltPartitions {
		if p != chosen {
			filtered = append(filtered, p)
		}
	}
	if job.Partition != "" {
		filtered = append(filtered, job.Partition)
	}
	job.AltPartitions = filtered
	job.Partition = chosen
}

func (l *Loop) failJob(job *jobspec.Job, reason jobspec.ReasonCode) {
	job.State = jobspec.JobFailed
	job.Reason = reason
	metrics.JobsFailedTotal.WithLabelValues(string(reason)).Inc()
}

// supersetContains reports whether avail holds every bit set in required.
// A nil required bitmap is trivially satisfied.
func supersetContains(avail, required *jobspec.NodeBitmap) bool {
	if required == nil {
		return true
	}
	missing := required.Clone()
	missing.AndNot(avail)
	return missing.IsEmpty()
}
