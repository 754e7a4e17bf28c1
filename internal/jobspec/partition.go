package jobspec

import "time"

// MaxShare encodes a partition's sharing policy (spec.md §3).
//
//	Exclusive = 0  no sharing, whole node(s) to one job
//	No        = 1  jobs may not share nodes
//	Force|N        force N jobs to share every node
//	Yes>1          jobs may share, up to N concurrently
type MaxShare int

const (
	ShareExclusive MaxShare = 0
	ShareNo        MaxShare = 1
)

const shareForceBit = 1 << 30

// ForceShare builds a MaxShare value meaning "force n jobs onto every node".
func ForceShare(n int) MaxShare { return MaxShare(n | shareForceBit) }

// IsForced reports whether sharing is mandatory rather than merely allowed.
func (m MaxShare) IsForced() bool { return int(m)&shareForceBit != 0 }

// Count returns the share degree N (meaningless for Exclusive/No).
func (m MaxShare) Count() int { return int(m) &^ shareForceBit }

// PreemptMode describes how a preempted job is stopped. Off/Suspend/Requeue
// /Cancel are mutually exclusive; Gang may be bit-OR'd with any of them
// (spec.md §3, GLOSSARY).
type PreemptMode int

const (
	PreemptOff PreemptMode = 1 << iota
	PreemptSuspend
	PreemptRequeue
	PreemptCancel
	PreemptGang
)

// Has reports whether flag is set in m.
func (m PreemptMode) Has(flag PreemptMode) bool { return m&flag != 0 }

// Partition is a scheduling domain of nodes (spec.md §3).
type Partition struct {
	Name        string
	PriorityTier int32 // dominates per-job priority in ordering and shadowing
	Nodes       *NodeBitmap
	MinNodes    int
	MaxNodes    int
	MaxTime     time.Duration
	MaxShare    MaxShare
	PreemptMode PreemptMode
	GraceTime   time.Duration
	State       PartitionState
}

// PartitionState reports whether a partition currently accepts jobs.
type PartitionState string

const (
	PartitionUp   PartitionState = "up"
	PartitionDown PartitionState = "down"
	PartitionDraining PartitionState = "draining"
)

// Reservation carves out a node set (and optionally a license sub-pool) for
// exclusive or preferential use (spec.md §3).
type Reservation struct {
	Name    string
	Nodes   *NodeBitmap
	Start   time.Time
	End     time.Time
	// LicensePool, if non-nil, is drawn from before the global pool for any
	// job associated with this reservation (spec.md §4.4 "Reservations").
	LicensePool *ReservedLicensePool
}

// Contains reports whether t falls inside the reservation's window.
func (r *Reservation) Contains(t time.Time) bool {
	if r == nil {
		return false
	}
	return !t.Before(r.Start) && t.Before(r.End)
}

// ReservedLicensePool is the sub-pool of license counts transferred from the
// global pool at reservation-create time.
type ReservedLicensePool struct {
	Reservation string
	Counts      map[string]uint32 // license name -> count reserved
	Used        map[string]uint32
}
