package gang

import (
	"github.com/cuemby/warren/internal/jobspec"
	"github.com/rs/zerolog"
)

// PartitionSpec is the gang-relevant slice of a partition's configuration,
// as seen by Manager.Reconfigure.
type PartitionSpec struct {
	Name         string
	Granularity  Granularity
	NodeCapacity map[string]int
}

// Manager owns every partition's Row (spec.md §4.6).
type Manager struct {
	rows   map[string]*Row
	logger zerolog.Logger
}

// NewManager constructs an empty Manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{rows: make(map[string]*Row), logger: logger}
}

// Row returns the row for partition, or nil if it doesn't have one.
func (m *Manager) Row(partition string) *Row {
	return m.rows[partition]
}

// CastShadow appends a footprint to every row of lower priority tier than
// castingTier (spec.md §4.6 "Shadowing").
func (m *Manager) CastShadow(castingTier int32, tierOf func(partition string) int32, f Footprint) {
	for name, row := range m.rows {
		if tierOf(name) < castingTier {
			row.CastShadow(f)
		}
	}
}

// Reconfigure rebuilds every row from scratch against the new partition
// set, per spec.md §4.6 "Reconfiguration": jobs suspended under a removed
// partition are resumed, surviving partitions' jobs are re-added from a
// full scan of allJobs (in the order given), and every row is rebuilt.
func (m *Manager) Reconfigure(newPartitions []PartitionSpec, allJobs []*jobspec.Job, rs ResumeSuspender) error {
	newRows := make(map[string]*Row, len(newPartitions))
	for _, p := range newPartitions {
		newRows[p.Name] = NewRow(p.Name, p.Granularity, p.NodeCapacity, m.logger)
	}

	for name, old := range m.rows {
		if _, kept := newRows[name]; kept {
			continue
		}
		for _, job := range old.JobList {
			entry := old.Entries[job.ID]
			if entry == nil || !entry.WasSuspended {
				continue
			}
			if err := rs.Resume(job); err != nil {
				return err
			}
			entry.WasSuspended = false
		}
	}

	for _, job := range allJobs {
		if isHetJobComponent(job) {
			continue
		}
		if job.State != jobspec.JobRunning && job.State != jobspec.JobSuspended {
			continue
		}
		row, ok := newRows[job.Partition]
		if !ok {
			continue
		}
		row.JobList = append(row.JobList, job)
		if old, ok := m.rows[job.Partition]; ok {
			if oldEntry, ok := old.Entries[job.ID]; ok {
				row.Entries[job.ID] = &jobspec.GangEntry{
					JobID:        job.ID,
					Nodes:        oldEntry.Nodes,
					NodeCPUs:     oldEntry.NodeCPUs,
					State:        oldEntry.State,
					WasSuspended: oldEntry.WasSuspended,
				}
			}
		}
	}

	for _, row := range newRows {
		row.Build()
	}

	m.logger.Info().Int("partitions", len(newRows)).Int("jobs_scanned", len(allJobs)).Msg("gang state reconfigured")
	m.rows = newRows
	return nil
}
