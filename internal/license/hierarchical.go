package license

import "github.com/cuemby/warren/internal/jobspec"

// FilterNodes narrows a candidate node bitmap for a hierarchical (hres)
// license request, per spec.md §4.4 "Hierarchical modes". It operates on
// whichever sibling group shares the requested license's name; siblings
// that are not hierarchical (HresID == 0) make FilterNodes a no-op,
// returning candidates unchanged.
func (p *Pool) FilterNodes(name string, count uint32, candidates *jobspec.NodeBitmap) *jobspec.NodeBitmap {
	p.mu.Lock()
	siblings := p.recordsByName(name)
	p.mu.Unlock()

	if len(siblings) == 0 || siblings[0].HresID == 0 {
		return candidates
	}

	mode := siblings[0].Mode
	switch mode {
	case jobspec.HresMode1:
		// Exclusive: OR of siblings that independently satisfy count.
		out := jobspec.NewNodeBitmap(0)
		for _, s := range siblings {
			if s.Available() >= count {
				out.Or(s.Nodes)
			}
		}
		return out
	case jobspec.HresMode2:
		// Inclusive: all sibling nodes minus ones that fail the count.
		out := jobspec.NewNodeBitmap(0)
		for _, s := range siblings {
			out.Or(s.Nodes)
		}
		for _, s := range siblings {
			if s.Available() < count {
				out.AndNot(s.Nodes)
			}
		}
		return out
	default:
		return candidates
	}
}
