package license

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/warren/internal/jobspec"
)

// Pool is the cluster-wide license accountant (spec.md §3 "License",
// §4.4). All mutation happens under mu; Snapshot gives read-only callers a
// copy that outlives the lock (spec.md §5 "License mutex").
type Pool struct {
	mu     sync.Mutex
	byID   map[jobspec.LicID]*jobspec.License
	byName map[string][]jobspec.LicID // siblings sharing a name (hres groups)
	nextID jobspec.LicID
}

// NewPool constructs an empty pool.
func NewPool() *Pool {
	return &Pool{
		byID:   make(map[jobspec.LicID]*jobspec.License),
		byName: make(map[string][]jobspec.LicID),
		nextID: 1,
	}
}

// Configure parses a license string (e.g. "db:4,compiler:8") and adds one
// record per entry with a freshly assigned stable lic_id (spec.md §4.4
// "Construction"). Configure itself only ever sees AND-joined totals; the
// AND/OR distinction applies to job requests, not the pool definition.
func (p *Pool) Configure(s string) error {
	entries, _, err := Parse(s)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entries {
		id := p.nextID
		p.nextID++
		p.byID[id] = &jobspec.License{LicID: id, Name: e.Name, Total: e.Count}
		p.byName[e.Name] = append(p.byName[e.Name], id)
	}
	return nil
}

// HresRecord describes one overlay entry from the hierarchical-resources
// config file (spec.md §4.4 "Construction").
type HresRecord struct {
	Name  string
	Nodes *jobspec.NodeBitmap
	Mode  jobspec.HresMode
	Total uint32
}

// LoadHierarchical overlays hierarchical-resource annotations onto existing
// (or new) records. Records sharing Name are siblings and are assigned the
// same hres_id.
func (p *Pool) LoadHierarchical(records []HresRecord) error {
	if len(records) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	byName := make(map[string][]HresRecord)
	for _, r := range records {
		byName[r.Name] = append(byName[r.Name], r)
	}

	for name, group := range byName {
		hresID := p.nextID
		p.nextID++
		for _, r := range group {
			ids, ok := p.byName[name]
			var lic *jobspec.License
			if ok && len(ids) > 0 {
				// Reuse the first sibling slot for the first hres record of
				// this name; subsequent siblings get new records.
				if l, exists := p.byID[ids[0]]; exists && l.HresID == 0 && l.Nodes == nil {
					lic = l
					lic.Total = r.Total
				}
			}
			if lic == nil {
				id := p.nextID
				p.nextID++
				lic = &jobspec.License{LicID: id, Name: name, Total: r.Total}
				p.byID[id] = lic
				p.byName[name] = append(p.byName[name], id)
			}
			lic.HresID = hresID
			lic.Mode = r.Mode
			lic.Nodes = r.Nodes
		}
	}
	return nil
}

// recordsByName returns every sibling record for name, ordered by lic_id for
// determinism. Caller must hold p.mu.
func (p *Pool) recordsByName(name string) []*jobspec.License {
	ids := append([]jobspec.LicID(nil), p.byName[name]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*jobspec.License, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.byID[id])
	}
	return out
}

// Get returns a read-only copy of the named record's current counters, for
// tests and metrics export.
func (p *Pool) Get(name string) (jobspec.License, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	recs := p.recordsByName(name)
	if len(recs) == 0 {
		return jobspec.License{}, false
	}
	return *recs[0], true
}

// Snapshot returns a copy of every configured license record, keyed by
// nothing in particular — callers checkpoint it as a flat list (spec.md §6
// "Persisted state").
func (p *Pool) Snapshot() []jobspec.License {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]jobspec.License, 0, len(p.byID))
	for _, id := range p.sortedIDs() {
		out = append(out, *p.byID[id])
	}
	return out
}

// Restore overwrites each record's counters (Used, ReservedForFuture,
// LastDeficit) from a prior checkpoint, matched by lic_id. Records the
// checkpoint doesn't mention are left at their configured defaults; records
// the checkpoint mentions that Configure/LoadHierarchical didn't recreate
// are ignored, since the license configuration string is the source of
// truth for which licenses exist (spec.md §4.4 "Construction").
func (p *Pool) Restore(records []jobspec.License) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, rec := range records {
		cur, ok := p.byID[rec.LicID]
		if !ok {
			continue
		}
		cur.Used = rec.Used
		cur.ReservedForFuture = rec.ReservedForFuture
		cur.LastDeficit = rec.LastDeficit
	}
}

func (p *Pool) sortedIDs() []jobspec.LicID {
	ids := make([]jobspec.LicID, 0, len(p.byID))
	for id := range p.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Names returns every configured license name.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.byName))
	for name := range p.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValidateRequest checks every entry's total against the configured global
// total, failing fast on a request that can never be satisfiable
// (spec.md §7 "LicensesExceedTotal").
func (p *Pool) ValidateRequest(entries []ParsedEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entries {
		recs := p.recordsByName(e.Name)
		if len(recs) == 0 {
			return fmt.Errorf("unknown license %q", e.Name)
		}
		var total uint32
		for _, r := range recs {
			total += r.Total
		}
		if e.Count > total {
			return fmt.Errorf("license %q requests %d, exceeds configured total %d", e.Name, e.Count, total)
		}
	}
	return nil
}
