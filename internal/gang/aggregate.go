package gang

import "github.com/cuemby/warren/internal/jobspec"

// Granularity is the cluster selector's scheduling grain (spec.md §4.6).
type Granularity int

const (
	GranNode Granularity = iota
	GranSocket
	GranCore
	GranCPU
	GranCPU2 // like CPU, but with task affinity; conflicts are checked on core bitmaps, as for Core
)

// Footprint is a job's resource claim, shaped according to Granularity
// (spec.md §4.6): a node bitmap for Node, a per-node core bitmap for
// Core/Socket/CPU2, or per-node CPU counts for CPU.
type Footprint struct {
	Nodes     *jobspec.NodeBitmap
	NodeCores map[string]*jobspec.NodeBitmap
	NodeCPUs  map[string]int
}

// footprintOf derives a job's Footprint for the given granularity.
func footprintOf(job *jobspec.Job, g Granularity) Footprint {
	switch g {
	case GranCPU, GranCPU2:
		if len(job.NodeCores) > 0 {
			return Footprint{Nodes: job.NodeBitmap, NodeCores: job.NodeCores}
		}
		return Footprint{Nodes: job.NodeBitmap, NodeCPUs: job.NodeCPUs}
	case GranCore, GranSocket:
		return Footprint{Nodes: job.NodeBitmap, NodeCores: job.NodeCores}
	default:
		return Footprint{Nodes: job.NodeBitmap}
	}
}

// Aggregate accumulates the resource footprint of a gang row or a
// partition's shadow list, and answers whether a candidate Footprint
// conflicts with what has already been claimed (spec.md §4.6).
type Aggregate struct {
	granularity  Granularity
	nodeCapacity map[string]int // physical CPU capacity per node; CPU granularity only

	nodes     *jobspec.NodeBitmap
	nodeCores map[string]*jobspec.NodeBitmap
	nodeCPUs  map[string]int
}

// NewAggregate constructs an empty Aggregate. nodeCapacity is only
// consulted under CPU granularity, to clamp overcommit at physical
// capacity (spec.md §4.6).
func NewAggregate(g Granularity, nodeCapacity map[string]int) *Aggregate {
	return &Aggregate{
		granularity:  g,
		nodeCapacity: nodeCapacity,
		nodes:        jobspec.NewNodeBitmap(0),
		nodeCores:    make(map[string]*jobspec.NodeBitmap),
		nodeCPUs:     make(map[string]int),
	}
}

// Conflicts reports whether f would collide with the aggregate's current
// claim.
func (a *Aggregate) Conflicts(f Footprint) bool {
	switch a.granularity {
	case GranNode:
		return a.nodes.Overlaps(f.Nodes)
	case GranCPU:
		if len(f.NodeCores) > 0 {
			return a.coresConflict(f)
		}
		for node, need := range f.NodeCPUs {
			capacity, known := a.nodeCapacity[node]
			if !known {
				continue // no known capacity: don't spuriously reject
			}
			if a.nodeCPUs[node]+need > capacity {
				return true
			}
		}
		return false
	default: // Core, Socket, CPU2
		return a.coresConflict(f)
	}
}

func (a *Aggregate) coresConflict(f Footprint) bool {
	for node, bm := range f.NodeCores {
		if existing, ok := a.nodeCores[node]; ok && existing.Overlaps(bm) {
			return true
		}
	}
	return false
}

// Add commits f into the aggregate's claim. Callers must first confirm
// !Conflicts(f).
func (a *Aggregate) Add(f Footprint) {
	a.nodes.Or(f.Nodes)
	switch a.granularity {
	case GranCPU:
		if len(f.NodeCores) > 0 {
			a.addCores(f)
			return
		}
		for node, n := range f.NodeCPUs {
			a.nodeCPUs[node] += n
		}
	case GranNode:
		// Node bitmap union above is the whole claim.
	default:
		a.addCores(f)
	}
}

func (a *Aggregate) addCores(f Footprint) {
	for node, bm := range f.NodeCores {
		existing, ok := a.nodeCores[node]
		if !ok {
			existing = jobspec.NewNodeBitmap(0)
			a.nodeCores[node] = existing
		}
		existing.Or(bm)
	}
}
