package license

import (
	"fmt"
	"strings"

	"github.com/cuemby/warren/internal/jobspec"
)

// AllocResult is the outcome of Pool.Allocate.
type AllocResult struct {
	OK bool
	// AllocationString is the checkpointed allocation (spec.md §6
	// "Persisted state"), e.g. "matlab:2".
	AllocationString string
	// ToPreempt lists license names a failed AND allocation wants freed
	// (spec.md §4.4 "Allocation — AND case"); only ever set when the
	// caller passed reclaimLicenses=true and OK is false.
	ToPreempt []string
}

// Allocate reserves licenses for job against the pool, honoring AND/OR
// semantics and reservation sub-pools (spec.md §4.4). resv may be nil.
// reclaimLicenses controls whether a failed AND allocation populates
// ToPreempt.
func (p *Pool) Allocate(job *jobspec.Job, resv *jobspec.Reservation, reclaimLicenses bool) (AllocResult, error) {
	if len(job.Licenses) == 0 {
		return AllocResult{OK: true}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var resvPool *jobspec.ReservedLicensePool
	if resv != nil {
		resvPool = resv.LicensePool
	}

	if job.LicenseOperator == jobspec.LicenseOR {
		return p.allocateOR(job, resvPool)
	}
	return p.allocateAND(job, resvPool, reclaimLicenses)
}

func (p *Pool) allocateOR(job *jobspec.Job, resvPool *jobspec.ReservedLicensePool) (AllocResult, error) {
	for _, req := range job.Licenses {
		if p.available(req.Name, req.Count, resvPool) {
			job.LicensesAllocatedFromResv = nil
			fromResv := p.commit(req.Name, req.Count, resvPool)
			recordResvDraw(job, req.Name, fromResv)
			job.Licenses = []jobspec.LicenseRequest{req}
			job.LicensesToPreempt = nil
			s := fmt.Sprintf("%s:%d", req.Name, req.Count)
			job.LicensesAllocated = s
			return AllocResult{OK: true, AllocationString: s}, nil
		}
	}
	return AllocResult{OK: false}, nil
}

func (p *Pool) allocateAND(job *jobspec.Job, resvPool *jobspec.ReservedLicensePool, reclaimLicenses bool) (AllocResult, error) {
	var deficient []string
	for _, req := range job.Licenses {
		if !p.available(req.Name, req.Count, resvPool) {
			deficient = append(deficient, req.Name)
		}
	}
	if len(deficient) > 0 {
		res := AllocResult{OK: false}
		if reclaimLicenses {
			res.ToPreempt = deficient
			job.LicensesToPreempt = deficient
		}
		return res, nil
	}

	job.LicensesAllocatedFromResv = nil
	parts := make([]string, 0, len(job.Licenses))
	for _, req := range job.Licenses {
		fromResv := p.commit(req.Name, req.Count, resvPool)
		recordResvDraw(job, req.Name, fromResv)
		parts = append(parts, fmt.Sprintf("%s:%d", req.Name, req.Count))
	}
	job.LicensesToPreempt = nil
	s := strings.Join(parts, ",")
	job.LicensesAllocated = s
	return AllocResult{OK: true, AllocationString: s}, nil
}

// splitDemand divides count between the reservation sub-pool and the global
// pool, drawing from the sub-pool first and spilling residual demand to the
// global pool (spec.md §4.4 "Reservations"), mirroring
// license_job_get's resv_entry->remaining handling: a request fully covered
// by the sub-pool's remaining balance draws entirely from it; otherwise the
// sub-pool's whole remaining balance is drawn and only the shortfall spills
// to the global pool. Returns fromResv == 0 when no sub-pool entry exists
// for name, in which case residual == count.
func (p *Pool) splitDemand(name string, count uint32, resvPool *jobspec.ReservedLicensePool) (fromResv, residual uint32) {
	if resvPool == nil {
		return 0, count
	}
	total, ok := resvPool.Counts[name]
	if !ok {
		return 0, count
	}
	used := resvPool.Used[name]
	remaining := uint32(0)
	if total > used {
		remaining = total - used
	}
	if count <= remaining {
		return count, 0
	}
	return remaining, count - remaining
}

// available checks spec.md §4.4's AND-case inequality:
//
//	residual + global.used + global.last_deficit + reserved_by_resv <= global.total
//
// where residual is whatever splitDemand can't satisfy from the reservation
// sub-pool.
func (p *Pool) available(name string, count uint32, resvPool *jobspec.ReservedLicensePool) bool {
	_, residual := p.splitDemand(name, count, resvPool)
	if residual == 0 {
		return true
	}
	var total, used, deficit, reserved uint32
	for _, rec := range p.recordsByName(name) {
		total += rec.Total
		used += rec.Used
		deficit += rec.LastDeficit
		reserved += rec.ReservedForFuture
	}
	if total == 0 {
		return false
	}
	return residual+used+deficit+reserved <= total
}

// commit applies an allocation decided by available: it draws fromResv out
// of the sub-pool and spreads the residual across the global siblings in
// lic_id order — the same order Return later walks to release it. Returns
// fromResv so the caller can record it for a symmetric release.
func (p *Pool) commit(name string, count uint32, resvPool *jobspec.ReservedLicensePool) uint32 {
	fromResv, residual := p.splitDemand(name, count, resvPool)
	if fromResv > 0 {
		if resvPool.Used == nil {
			resvPool.Used = make(map[string]uint32)
		}
		resvPool.Used[name] += fromResv
	}
	remaining := residual
	for _, rec := range p.recordsByName(name) {
		if remaining == 0 {
			break
		}
		free := uint32(0)
		if rec.Total > rec.Used {
			free = rec.Total - rec.Used
		}
		take := remaining
		if take > free {
			take = free
		}
		rec.Used += take
		remaining -= take
	}
	return fromResv
}

// recordResvDraw notes that job drew fromResv units of name from the
// reservation sub-pool, so Return can release exactly that much from the
// sub-pool and the rest from the global pool.
func recordResvDraw(job *jobspec.Job, name string, fromResv uint32) {
	if fromResv == 0 {
		return
	}
	if job.LicensesAllocatedFromResv == nil {
		job.LicensesAllocatedFromResv = make(map[string]uint32)
	}
	job.LicensesAllocatedFromResv[name] = fromResv
}

// Return releases a job's allocation, decrementing Used by exactly the
// allocation it was granted (spec.md §8, "L.used decreases by exactly J's
// allocation"). Returns how many (license, count) entries changed.
func (p *Pool) Return(job *jobspec.Job, resv *jobspec.Reservation) int {
	if job.LicensesAllocated == "" {
		return 0
	}
	entries, _, err := Parse(job.LicensesAllocated)
	if err != nil {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var resvPool *jobspec.ReservedLicensePool
	if resv != nil {
		resvPool = resv.LicensePool
	}

	changed := 0
	for _, e := range entries {
		// fromResv is exactly what this job drew from the sub-pool at
		// allocation time (spec.md §4.4 "Reservations"); the rest of
		// e.Count was satisfied by the global pool and releases there,
		// mirroring the split splitDemand/commit performed.
		fromResv := job.LicensesAllocatedFromResv[e.Name]
		if fromResv > 0 && resvPool != nil {
			dec := fromResv
			if dec > resvPool.Used[e.Name] {
				dec = resvPool.Used[e.Name]
			}
			resvPool.Used[e.Name] -= dec
			changed++
		}
		residual := e.Count - fromResv
		if residual > 0 {
			remaining := residual
			for _, rec := range p.recordsByName(e.Name) {
				if remaining == 0 {
					break
				}
				dec := remaining
				if dec > rec.Used {
					dec = rec.Used
				}
				rec.Used -= dec
				remaining -= dec
			}
			changed++
		}
	}
	job.LicensesAllocated = ""
	job.LicensesAllocatedFromResv = nil
	return changed
}

// Test performs a dry-run allocation check without mutating the pool
// (spec.md §6 "license_job_test"). It reports ok (would succeed now), busy
// (would succeed if the cluster reclaimed licenses), and never (the request
// exceeds the configured total and can never succeed).
type TestResult struct {
	OK    bool
	Busy  bool
	Never bool
}

// Test dry-runs job's license request against the current pool state.
func (p *Pool) Test(job *jobspec.Job, resv *jobspec.Reservation) TestResult {
	if len(job.Licenses) == 0 {
		return TestResult{OK: true}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var resvPool *jobspec.ReservedLicensePool
	if resv != nil {
		resvPool = resv.LicensePool
	}

	if job.LicenseOperator == jobspec.LicenseOR {
		for _, req := range job.Licenses {
			if p.available(req.Name, req.Count, resvPool) {
				return TestResult{OK: true}
			}
		}
		for _, req := range job.Licenses {
			if !p.requestFits(req.Name, req.Count) {
				continue
			}
			return TestResult{Busy: true}
		}
		return TestResult{Never: true}
	}

	allFit := true
	allAvailable := true
	for _, req := range job.Licenses {
		if !p.requestFits(req.Name, req.Count) {
			allFit = false
		}
		if !p.available(req.Name, req.Count, resvPool) {
			allAvailable = false
		}
	}
	switch {
	case allAvailable:
		return TestResult{OK: true}
	case allFit:
		return TestResult{Busy: true}
	default:
		return TestResult{Never: true}
	}
}

// requestFits reports whether count could ever be satisfied against the
// configured total, ignoring current usage. Caller must hold p.mu.
func (p *Pool) requestFits(name string, count uint32) bool {
	var total uint32
	for _, rec := range p.recordsByName(name) {
		total += rec.Total
	}
	return total > 0 && count <= total
}
