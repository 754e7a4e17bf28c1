package jobspec

import "time"

// JobState is the top-level lifecycle state of a job (spec.md §3).
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSuspended JobState = "suspended"
	JobComplete  JobState = "complete"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
	JobTimeout   JobState = "timeout"
	JobNodeFail  JobState = "node_fail"
)

// Terminal reports whether the state is one a job never leaves on its own.
func (s JobState) Terminal() bool {
	switch s {
	case JobComplete, JobFailed, JobCancelled, JobTimeout, JobNodeFail:
		return true
	default:
		return false
	}
}

// ReasonCode explains why a pending job isn't running, or why a job failed.
// A finite enum, per spec.md §3 ("a reason code... a finite enum").
type ReasonCode string

const (
	ReasonNone              ReasonCode = ""
	ReasonDependency        ReasonCode = "Dependency"
	ReasonPriority          ReasonCode = "Priority"
	ReasonLicenses          ReasonCode = "Licenses"
	ReasonNodesBusy         ReasonCode = "NodesBusy"
	ReasonReservationBusy   ReasonCode = "ReservationBusy"
	ReasonConfigUnavailable ReasonCode = "ConfigUnavailable"
	ReasonBadConstraints    ReasonCode = "BadConstraints"
	ReasonFailAccount       ReasonCode = "FailAccount"
	ReasonFailQOS           ReasonCode = "FailQOS"
	ReasonPolicyLimit       ReasonCode = "PolicyLimit"
	ReasonFrontEndDown      ReasonCode = "FrontEndDown"
	ReasonPartitionDown     ReasonCode = "PartitionDown"
)

// NeverRunnableExitCode is the fixed exit code applied when a job is failed
// for BadConstraints (spec.md §4.1 step 7, §7).
const NeverRunnableExitCode = 1

// DepType is a dependency list entry's relation to its target (spec.md §4.3).
type DepType string

const (
	DepAfter       DepType = "after"
	DepAfterAny    DepType = "afterany"
	DepAfterOK     DepType = "afterok"
	DepAfterNotOK  DepType = "afternotok"
	DepExpand      DepType = "expand"
	DepSingleton   DepType = "singleton"
)

// WildcardTask marks a dependency entry that targets an entire job array.
const WildcardTask = -1

// Dependency is one entry of a job's dependency list (spec.md §4.3).
type Dependency struct {
	Type           DepType
	TargetJobID    string
	TargetArrayTaskID int // WildcardTask for "the whole array"
}

// LicenseOperator is the AND/OR semantics of a job's license request list
// (spec.md §3, Job-License Edge). A single submission may not mix the two.
type LicenseOperator string

const (
	LicenseAND LicenseOperator = "AND"
	LicenseOR  LicenseOperator = "OR"
)

// LicenseRequest is one (name, count) entry of a job's ordered license list.
type LicenseRequest struct {
	Name  string
	Count uint32
}

// HetJobComponent links a hetjob leader to one sibling component job.
type HetJobComponent struct {
	JobID        string
	PreemptExempt bool
}

// ResourceRequest carries a job's resource ask (spec.md §3).
type ResourceRequest struct {
	MinCPUs      int
	MaxCPUs      int
	MinNodes     int
	MaxNodes     int
	CPUsPerTask  int
	TasksPerNode int
	// Exactly one of MemPerCPU / MemPerNode is set, mirroring Slurm's
	// mutually-exclusive per-cpu vs per-node memory accounting.
	MemPerCPUMB  int64
	MemPerNodeMB int64
	TmpDiskMB    int64
	Features     string // a boolean feature-bitmap expression, opaque here
}

// Timing captures the timestamps tracked across a job's lifecycle.
type Timing struct {
	Submit   time.Time
	Eligible time.Time
	Start    time.Time
	End      time.Time
	Preempt  time.Time
	Suspend  time.Time
}

// WarnSignal configures the signal sent to a job before a hard kill.
type WarnSignal struct {
	Signal  string // e.g. "SIGUSR1"
	WarnSec int
}

// Job is the unit of work scheduled by the core (spec.md §3).
type Job struct {
	ID          string
	ArrayJobID  string // non-empty if this is one task of an array
	ArrayTaskID int    // WildcardTask for the array head acting on all tasks

	Owner string // for singleton dependency matching
	Name  string

	Priority uint32 // 0 means "held"
	State    JobState
	Completing bool // orthogonal to State; epilog/prolog still running
	Reason   ReasonCode
	ExitCode int
	// SpecialExit marks a job an operator flagged specially at completion
	// (e.g. `scancel --hold`-style operator intervention), independent of
	// ExitCode. An `afternotok` dependency on this job is satisfied by the
	// flag alone, the same way it is by a nonzero exit (spec.md §4.3
	// dependency table).
	SpecialExit bool

	// PrologRequeued marks that a prolog failure has already triggered one
	// requeue attempt for this job (spec.md §4.7, §4.8 "Prolog failure"): a
	// second failure kills the job rather than requeuing it again.
	PrologRequeued bool

	Partition     string   // primary/chosen partition
	AltPartitions []string // alternates for multi-partition submissions
	// PartitionPriority holds a per-partition priority vector keyed by
	// partition name, used instead of Priority when present (spec.md §4.2).
	PartitionPriority map[string]uint32
	Reservation       string

	Account string
	QoS     string

	Resources ResourceRequest

	Dependencies []Dependency
	// ExpandingJobID is set when an `expand` dependency resolved; the job
	// expands its resources into this running target (spec.md §4.3).
	ExpandingJobID string

	Licenses          []LicenseRequest
	LicenseOperator   LicenseOperator
	LicensesAllocated string   // checkpointed allocation string (spec.md §6)
	LicensesToPreempt []string // names a failed AND allocation wants freed
	// LicensesAllocatedFromResv records, per license name, how much of this
	// job's allocation was drawn from a reservation sub-pool rather than the
	// global pool (spec.md §4.4 "Reservations": sub-pool first, residual
	// spills to the global pool). Pool.Return uses it to release each part
	// symmetrically.
	LicensesAllocatedFromResv map[string]uint32

	WarnSignal WarnSignal

	HetJobLeaderID string // set on components; empty on the leader itself
	HetJobComponents []HetJobComponent // set on the leader only

	Timing Timing

	// NodeBitmap is non-nil only while Running/Suspended (spec.md §3
	// invariant: a pending job has none).
	NodeBitmap *NodeBitmap
	NodeCPUs   map[string]int
	// NodeCores holds a per-node core bitmap, populated only when the
	// cluster's gang-scheduling granularity is Core, Socket, or CPU2
	// (spec.md §4.6).
	NodeCores map[string]*NodeBitmap

	RequiredNodes *NodeBitmap // nodes the job insists on (-w / --nodelist)
}

// IsPending reports whether the job occupies the Pending state (helper used
// throughout the queue builder and dependency resolver).
func (j *Job) IsPending() bool { return j.State == JobPending }

// IsHetJobLeader reports whether j owns a component list.
func (j *Job) IsHetJobLeader() bool { return len(j.HetJobComponents) > 0 }
