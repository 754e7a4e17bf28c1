package jobspec

// GangJobState tracks a job's participation in its partition's coscheduled
// row (spec.md §4.6).
type GangJobState string

const (
	GangActive   GangJobState = "active"   // fits the current row, running
	GangFiller   GangJobState = "filler"   // added out of arrival order this slice
	GangNoActive GangJobState = "no_active" // conflicts with the row, suspended
)

// GangEntry is one job tracked by a partition's gang row.
type GangEntry struct {
	JobID     string
	Nodes     *NodeBitmap
	NodeCPUs  map[string]int // only meaningful under CPU-granular sharing
	State     GangJobState
	// WasSuspended remembers whether the gang slicer itself suspended the
	// job, so a later rotation knows to resume it rather than leaving a
	// job some other mechanism suspended untouched (spec.md §4.6 "Cycle").
	WasSuspended bool
}
