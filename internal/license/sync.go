package license

import (
	"fmt"

	"github.com/cuemby/warren/internal/jobspec"
)

// RemoteRecord is one license entry read from the external accounting
// database (spec.md §4.4 "Remote-sync").
type RemoteRecord struct {
	Name           string
	Server         string
	Allowed        uint32 // absolute count, or a percentage if AllowedPercent
	AllowedPercent bool
	LastConsumed   uint32
}

func remoteKey(name, server string) string { return fmt.Sprintf("%s@%s", name, server) }

// SyncFromRemote reconciles the pool against a fresh read of the remote
// accounting database: matching entries are updated in place, entries no
// longer reported by the remote are removed, and newly reported entries are
// inserted (spec.md §4.4 "Remote-sync").
func (p *Pool) SyncFromRemote(records []RemoteRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing := make(map[string]jobspec.LicID)
	for id, rec := range p.byID {
		if rec.Server != "" {
			existing[remoteKey(rec.Name, rec.Server)] = id
		}
	}

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		key := remoteKey(r.Name, r.Server)
		seen[key] = true

		if id, ok := existing[key]; ok {
			rec := p.byID[id]
			rec.Total = p.resolveAllowed(rec, r)
			rec.LastDeficit = deficitFor(r.LastConsumed, rec.Total, rec.Used)
			continue
		}

		id := p.nextID
		p.nextID++
		rec := &jobspec.License{LicID: id, Name: r.Name, Server: r.Server}
		rec.Total = p.resolveAllowed(rec, r)
		rec.LastDeficit = deficitFor(r.LastConsumed, rec.Total, rec.Used)
		p.byID[id] = rec
		p.byName[r.Name] = append(p.byName[r.Name], id)
	}

	for key, id := range existing {
		if !seen[key] {
			rec := p.byID[id]
			delete(p.byID, id)
			ids := p.byName[rec.Name]
			for i, existingID := range ids {
				if existingID == id {
					p.byName[rec.Name] = append(ids[:i], ids[i+1:]...)
					break
				}
			}
		}
	}
}

// resolveAllowed computes a local total from a remote record's Allowed
// field, interpreting it as an absolute count or a percentage of the
// record's prior total. Caller must hold p.mu.
func (p *Pool) resolveAllowed(rec *jobspec.License, r RemoteRecord) uint32 {
	if !r.AllowedPercent {
		return r.Allowed
	}
	base := rec.Total
	return base * r.Allowed / 100
}

// deficitFor implements spec.md §4.4's "external deficit (last_consumed >
// allowed + used) reduces effective availability".
func deficitFor(lastConsumed, allowed, used uint32) uint32 {
	floor := allowed + used
	if lastConsumed > floor {
		return lastConsumed - floor
	}
	return 0
}
