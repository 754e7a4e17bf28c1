package license

import "github.com/cuemby/warren/internal/jobspec"

// BFKey identifies one backfill-view entry: a license, optionally scoped to
// a reservation's sub-pool (spec.md §4.4 "Backfill projection").
type BFKey struct {
	LicID       jobspec.LicID
	Reservation string // empty for the global pool's entry
}

// BFView is a copy-on-write snapshot of remaining license counts, used by
// look-ahead backfill planning to deduct and compare hypothetical futures
// without touching the live pool. A nil *BFView represents license
// tracking being disabled: every operation on it is a no-op, so the
// backfill hot path pays nothing (spec.md §4.4).
type BFView struct {
	remaining map[BFKey]uint32
}

// Snapshot builds a BFView from the pool's current state. reservations
// supplies the sub-pools to include as separately-keyed entries.
func (p *Pool) Snapshot(reservations []*jobspec.Reservation) *BFView {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := &BFView{remaining: make(map[BFKey]uint32, len(p.byID))}
	for id, rec := range p.byID {
		v.remaining[BFKey{LicID: id}] = rec.Available()
	}
	for _, r := range reservations {
		if r.LicensePool == nil {
			continue
		}
		for name, total := range r.LicensePool.Counts {
			used := r.LicensePool.Used[name]
			remaining := uint32(0)
			if total > used {
				remaining = total - used
			}
			for _, rec := range p.recordsByName(name) {
				v.remaining[BFKey{LicID: rec.LicID, Reservation: r.Name}] = remaining
			}
		}
	}
	return v
}

// Copy returns an independent copy of v. Copying a nil view yields nil.
func (v *BFView) Copy() *BFView {
	if v == nil {
		return nil
	}
	out := &BFView{remaining: make(map[BFKey]uint32, len(v.remaining))}
	for k, n := range v.remaining {
		out.remaining[k] = n
	}
	return out
}

// DeductSpec is one (lic_id, reservation, count) decrement to apply.
type DeductSpec struct {
	LicID       jobspec.LicID
	Reservation string
	Count       uint32
}

// Deduct returns a new BFView with each spec's count subtracted (clamped at
// zero) from the matching entry. Deducting over a nil view is a no-op that
// returns nil, keeping the disabled-tracking hot path free (spec.md §4.4).
func (v *BFView) Deduct(specs []DeductSpec) *BFView {
	if v == nil {
		return nil
	}
	out := v.Copy()
	for _, s := range specs {
		key := BFKey{LicID: s.LicID, Reservation: s.Reservation}
		remaining, ok := out.remaining[key]
		if !ok {
			continue
		}
		if s.Count > remaining {
			out.remaining[key] = 0
		} else {
			out.remaining[key] = remaining - s.Count
		}
	}
	return out
}

// Equal reports whether a and b agree on every (lic_id, reservation) key
// present in either view (spec.md §8 homomorphism property).
func Equal(a, b *BFView) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.remaining) != len(b.remaining) {
		return false
	}
	for k, v := range a.remaining {
		if ov, ok := b.remaining[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Remaining returns the count tracked for key, or (0, false) if absent.
func (v *BFView) Remaining(key BFKey) (uint32, bool) {
	if v == nil {
		return 0, false
	}
	n, ok := v.remaining[key]
	return n, ok
}
