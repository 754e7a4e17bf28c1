package scheduler

import (
	"github.com/cuemby/warren/internal/depend"
	"github.com/cuemby/warren/internal/jobspec"
)

// JobTable is the external job/partition/reservation store (spec.md §1
// Non-goals: persistence and the full cluster record own this; the loop
// only reads and writes through it). It embeds depend.TargetLookup since
// the Dependency Resolver is evaluated inline against the same table.
type JobTable interface {
	depend.TargetLookup
	PendingJobs() []*jobspec.Job
	RunningJobs() []*jobspec.Job
	Partition(name string) (*jobspec.Partition, bool)
	Reservation(name string) (*jobspec.Reservation, bool)
}

// FrontEnd reports whether at least one node is up to accept jobs (spec.md
// §4.1 step 2). Out of scope for this module.
type FrontEnd interface {
	Up() bool
}

// PolicyChecks bundles the external validity predicates the loop applies
// per candidate (spec.md §4.1 step 5). Each is out of scope for this
// module; a nil field means "always valid".
type PolicyChecks struct {
	AccountValid    func(job *jobspec.Job) bool
	QoSValid        func(job *jobspec.Job) bool
	PartitionUsable func(partition *jobspec.Partition) bool
}

// Starter records a successful placement against the job table (spec.md
// §6). Out of scope for this module.
type Starter interface {
	Start(job *jobspec.Job, partition string, nodes *jobspec.NodeBitmap, preemptees []string) error
}

// ArraySpawner returns the next not-yet-considered task of an array job, or
// nil once none remain (spec.md §4.1 "Array-task amplification"). Out of
// scope for this module.
type ArraySpawner interface {
	NextTask(arrayJobID string) *jobspec.Job
}

// RPCPressure reports the server's current inflight RPC count, checked
// against `max_rpc_cnt` (spec.md §4.1 step 1). Out of scope for this
// module.
type RPCPressure interface {
	InflightCount() int
}
