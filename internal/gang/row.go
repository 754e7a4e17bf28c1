package gang

import (
	"github.com/cuemby/warren/internal/jobspec"
	"github.com/rs/zerolog"
)

// Row is one partition's gang-scheduling state (spec.md §4.6): the
// preserved-order job list, the per-job entry tracking, and the shadow
// footprints cast onto it by higher-priority partitions.
type Row struct {
	Partition    string
	Granularity  Granularity
	NodeCapacity map[string]int

	// JobList is kept in "preserved order": arrival order, rotated a
	// slice at a time by Rotate.
	JobList []*jobspec.Job
	Entries map[string]*jobspec.GangEntry
	Shadow  []Footprint

	logger zerolog.Logger
}

// NewRow constructs an empty Row for partition.
func NewRow(partition string, granularity Granularity, nodeCapacity map[string]int, logger zerolog.Logger) *Row {
	return &Row{
		Partition:    partition,
		Granularity:  granularity,
		NodeCapacity: nodeCapacity,
		Entries:      make(map[string]*jobspec.GangEntry),
		logger:       logger,
	}
}

// CastShadow appends a footprint to the row's shadow list: called whenever
// a job starts in a higher-priority partition, so this (lower-priority) row
// treats that footprint as already claimed (spec.md §4.6 "Shadowing").
func (r *Row) CastShadow(f Footprint) {
	r.Shadow = append(r.Shadow, f)
}

// ClearShadow drops the row's shadow list, once the casting job has ended.
func (r *Row) ClearShadow() {
	r.Shadow = nil
}

// Build applies the row's shadows first, then attempts to add each job
// from JobList in its preserved order, per spec.md §4.6 "Row building".
// Hetjob components neither enter the row nor affect it (spec.md §4.6
// "Hetjob exclusion").
func (r *Row) Build() {
	agg := NewAggregate(r.Granularity, r.NodeCapacity)
	for _, s := range r.Shadow {
		agg.Add(s)
	}

	anyEarlierRejected := false
	for _, job := range r.JobList {
		if isHetJobComponent(job) {
			continue
		}

		entry := r.entryFor(job)
		f := footprintOf(job, r.Granularity)

		if agg.Conflicts(f) {
			entry.State = jobspec.GangNoActive
			anyEarlierRejected = true
			continue
		}

		agg.Add(f)
		if anyEarlierRejected {
			entry.State = jobspec.GangFiller
		} else {
			entry.State = jobspec.GangActive
		}
	}

	r.logger.Debug().Str("partition", r.Partition).Int("job_list", len(r.JobList)).Msg("gang row rebuilt")
}

func (r *Row) entryFor(job *jobspec.Job) *jobspec.GangEntry {
	entry, ok := r.Entries[job.ID]
	if !ok {
		entry = &jobspec.GangEntry{JobID: job.ID}
		r.Entries[job.ID] = entry
	}
	entry.Nodes = job.NodeBitmap
	entry.NodeCPUs = job.NodeCPUs
	return entry
}

func isHetJobComponent(job *jobspec.Job) bool {
	return job.IsHetJobLeader() || job.HetJobLeaderID != ""
}

// Add appends job to the back of the row's job list (a new arrival).
func (r *Row) Add(job *jobspec.Job) {
	if isHetJobComponent(job) {
		return
	}
	r.JobList = append(r.JobList, job)
}

// Remove drops job from the row entirely (completion, cancellation).
func (r *Row) Remove(jobID string) {
	delete(r.Entries, jobID)
	for i, j := range r.JobList {
		if j.ID == jobID {
			r.JobList = append(r.JobList[:i], r.JobList[i+1:]...)
			return
		}
	}
}
