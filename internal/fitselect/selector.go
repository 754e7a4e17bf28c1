package fitselect

import (
	"github.com/cuemby/warren/internal/jobspec"
	"github.com/cuemby/warren/internal/placement"
)

// Selector implements placement.Selector with a first-fit bitmap scan.
type Selector struct {
	// NodeCount bounds how many node indices are scanned.
	NodeCount int
}

// New constructs a Selector over a universe of nodeCount indices.
func New(nodeCount int) *Selector {
	return &Selector{NodeCount: nodeCount}
}

// Test scans avail in index order and claims the first reqNodes free bits
// that also belong to partition.Nodes and (if set) job.RequiredNodes. It
// never preempts or reports a reservation-specific outcome: those require
// the real node-selection system this package stands in for.
func (s *Selector) Test(job *jobspec.Job, partition *jobspec.Partition, avail *jobspec.NodeBitmap, minNodes, maxNodes, reqNodes int, mode placement.SelectMode) (placement.SelectorOutcome, *jobspec.NodeBitmap, []string, error) {
	chosen := jobspec.NewNodeBitmap(s.NodeCount)
	found := 0
	for i := 0; i < s.NodeCount && found < reqNodes; i++ {
		if !avail.IsSet(i) {
			continue
		}
		if partition.Nodes != nil && !partition.Nodes.IsSet(i) {
			continue
		}
		if job.RequiredNodes != nil && !job.RequiredNodes.IsEmpty() && !job.RequiredNodes.IsSet(i) {
			continue
		}
		chosen.Set(i)
		found++
	}
	if found < reqNodes {
		return placement.SelectorBusy, nil, nil, nil
	}
	return placement.SelectorOK, chosen, nil, nil
}
