package jobtable

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/warren/internal/jobspec"
)

// Store caches jobs, partitions and reservations in memory, guarded by a
// single RWMutex. It is the concrete collaborator schedulerd wires into the
// scheduler, epilog interlock and control API in place of the external record
// store spec.md leaves unspecified.
type Store struct {
	mu sync.RWMutex

	jobs         map[string]*jobspec.Job
	partitions   map[string]*jobspec.Partition
	reservations map[string]*jobspec.Reservation

	// arrayCursor tracks, per array job id, the highest ArrayTaskID handed
	// out by NextTask so repeated calls amplify forward instead of
	// re-issuing the same task (spec.md §4.1 "Array-task amplification").
	arrayCursor map[string]int
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		jobs:         make(map[string]*jobspec.Job),
		partitions:   make(map[string]*jobspec.Partition),
		reservations: make(map[string]*jobspec.Reservation),
		arrayCursor:  make(map[string]int),
	}
}

// PutJob inserts or replaces a job record.
func (s *Store) PutJob(job *jobspec.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// PutPartition inserts or replaces a partition record.
func (s *Store) PutPartition(p *jobspec.Partition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions[p.Name] = p
}

// PutReservation inserts or replaces a reservation record.
func (s *Store) PutReservation(r *jobspec.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.Name] = r
}

// Job implements depend.TargetLookup / scheduler.JobTable.
func (s *Store) Job(id string) (*jobspec.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// ArrayTasks implements depend.TargetLookup / scheduler.JobTable.
func (s *Store) ArrayTasks(arrayJobID string) []*jobspec.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*jobspec.Job
	for _, j := range s.jobs {
		if j.ArrayJobID == arrayJobID {
			out = append(out, j)
		}
	}
	return out
}

// SingletonConflict implements depend.TargetLookup / scheduler.JobTable.
func (s *Store) SingletonConflict(owner, name, selfJobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.ID == selfJobID {
			continue
		}
		if j.Owner != owner || j.Name != name {
			continue
		}
		if j.State == jobspec.JobPending || j.State == jobspec.JobRunning || j.State == jobspec.JobSuspended {
			if j.ID < selfJobID {
				return true
			}
		}
	}
	return false
}

// PendingJobs implements scheduler.JobTable.
func (s *Store) PendingJobs() []*jobspec.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*jobspec.Job
	for _, j := range s.jobs {
		if j.State == jobspec.JobPending {
			out = append(out, j)
		}
	}
	return out
}

// RunningJobs implements scheduler.JobTable.
func (s *Store) RunningJobs() []*jobspec.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*jobspec.Job
	for _, j := range s.jobs {
		if j.State == jobspec.JobRunning {
			out = append(out, j)
		}
	}
	return out
}

// Partition implements scheduler.JobTable.
func (s *Store) Partition(name string) (*jobspec.Partition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partitions[name]
	return p, ok
}

// Reservation implements scheduler.JobTable.
func (s *Store) Reservation(name string) (*jobspec.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[name]
	return r, ok
}

// Start implements scheduler.Starter: it records a successful placement
// against the cached job record. Preemptees are requeued, suspended or
// cancelled according to the partition's PreemptMode, mirroring what the real
// placement/preemption executor would have already done by the time Start
// is called.
func (s *Store) Start(job *jobspec.Job, partition string, nodes *jobspec.NodeBitmap, preemptees []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.jobs[job.ID]
	if !ok {
		return fmt.Errorf("jobtable: start of unknown job %q", job.ID)
	}

	cur.State = jobspec.JobRunning
	cur.Partition = partition
	cur.NodeBitmap = nodes.Clone()
	cur.Timing.Start = time.Now()

	for _, id := range preemptees {
		victim, ok := s.jobs[id]
		if !ok {
			continue
		}
		p := s.partitions[victim.Partition]
		switch {
		case p != nil && p.PreemptMode.Has(jobspec.PreemptRequeue):
			victim.State = jobspec.JobPending
			victim.NodeBitmap = nil
			victim.Timing.Preempt = time.Now()
		case p != nil && p.PreemptMode.Has(jobspec.PreemptSuspend):
			victim.State = jobspec.JobSuspended
			victim.Timing.Suspend = time.Now()
		default:
			victim.State = jobspec.JobCancelled
			victim.Timing.End = time.Now()
		}
	}
	return nil
}

// Requeue implements epilog.Requeuer: it returns job to Pending so the next
// cycle reconsiders it (spec.md §4.7 "Prolog failure").
func (s *Store) Requeue(job *jobspec.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[job.ID]
	if !ok {
		return fmt.Errorf("jobtable: requeue of unknown job %q", job.ID)
	}
	cur.State = jobspec.JobPending
	cur.NodeBitmap = nil
	return nil
}

// Kill implements epilog.Requeuer: it fails job outright.
func (s *Store) Kill(job *jobspec.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[job.ID]
	if !ok {
		return fmt.Errorf("jobtable: kill of unknown job %q", job.ID)
	}
	cur.State = jobspec.JobFailed
	cur.Reason = jobspec.ReasonBadConstraints
	cur.ExitCode = jobspec.NeverRunnableExitCode
	cur.Timing.End = time.Now()
	return nil
}

// NextTask implements scheduler.ArraySpawner: it returns the lowest-indexed
// not-yet-issued task of arrayJobID still in the template state (ArrayTaskID
// set, State Pending, never handed out before), or nil once the array is
// exhausted.
func (s *Store) NextTask(arrayJobID string) *jobspec.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.arrayCursor[arrayJobID]
	if !ok {
		next = 0
	}

	var best *jobspec.Job
	for _, j := range s.jobs {
		if j.ArrayJobID != arrayJobID || j.State != jobspec.JobPending {
			continue
		}
		if j.ArrayTaskID < next {
			continue
		}
		if best == nil || j.ArrayTaskID < best.ArrayTaskID {
			best = j
		}
	}
	if best == nil {
		return nil
	}
	s.arrayCursor[arrayJobID] = best.ArrayTaskID + 1
	return best
}
