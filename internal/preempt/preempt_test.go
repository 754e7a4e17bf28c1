package preempt

import (
	"errors"
	"testing"
	"time"

	"github.com/cuemby/warren/internal/jobspec"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodesWith(bits ...int) *jobspec.NodeBitmap {
	b := jobspec.NewNodeBitmap(64)
	for _, n := range bits {
		b.Set(n)
	}
	return b
}

func runningJob(id string, priority uint32, nodes *jobspec.NodeBitmap, start time.Time) *jobspec.Job {
	return &jobspec.Job{ID: id, State: jobspec.JobRunning, Priority: priority, NodeBitmap: nodes, Timing: jobspec.Timing{Start: start}}
}

func TestCandidatesFiltersNonOverlapping(t *testing.T) {
	preemptor := &jobspec.Job{ID: "p"}
	overlap := runningJob("a", 1, nodesWith(0), time.Time{})
	disjoint := runningJob("b", 1, nodesWith(5), time.Time{})

	e := NewEngine(nil, nil, zerolog.Nop())
	got := e.Candidates(preemptor, []*jobspec.Job{overlap, disjoint}, nodesWith(0), Params{MinExemptPriority: 1000}, nil, time.Now())

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestCandidatesLicenseOverlapCounts(t *testing.T) {
	preemptor := &jobspec.Job{ID: "p", Licenses: []jobspec.LicenseRequest{{Name: "matlab", Count: 1}}}
	cand := runningJob("a", 1, nodesWith(9), time.Time{})
	cand.Licenses = []jobspec.LicenseRequest{{Name: "matlab", Count: 1}}

	e := NewEngine(nil, nil, zerolog.Nop())
	got := e.Candidates(preemptor, []*jobspec.Job{cand}, nodesWith(0), Params{MinExemptPriority: 1000}, nil, time.Now())

	require.Len(t, got, 1)
}

func TestCandidatesExemptsAboveMinPriority(t *testing.T) {
	preemptor := &jobspec.Job{ID: "p"}
	high := runningJob("a", 500, nodesWith(0), time.Time{})

	e := NewEngine(nil, nil, zerolog.Nop())
	got := e.Candidates(preemptor, []*jobspec.Job{high}, nodesWith(0), Params{MinExemptPriority: 100}, nil, time.Now())

	assert.Empty(t, got)
}

func TestCandidatesExemptsExpandTarget(t *testing.T) {
	preemptor := &jobspec.Job{ID: "p", ExpandingJobID: "a"}
	cand := runningJob("a", 1, nodesWith(0), time.Time{})

	e := NewEngine(nil, nil, zerolog.Nop())
	got := e.Candidates(preemptor, []*jobspec.Job{cand}, nodesWith(0), Params{MinExemptPriority: 1000}, nil, time.Now())

	assert.Empty(t, got)
}

func TestCandidatesExemptsAccountingPolicy(t *testing.T) {
	preemptor := &jobspec.Job{ID: "p"}
	cand := runningJob("a", 1, nodesWith(0), time.Time{})

	exempt := func(j *jobspec.Job) bool { return j.ID == "a" }
	e := NewEngine(nil, exempt, zerolog.Nop())
	got := e.Candidates(preemptor, []*jobspec.Job{cand}, nodesWith(0), Params{MinExemptPriority: 1000}, nil, time.Now())

	assert.Empty(t, got)
}

func TestCandidatesHetJobAtomicExemption(t *testing.T) {
	preemptor := &jobspec.Job{ID: "p"}
	leader := runningJob("leader", 1, nodesWith(0), time.Time{})
	leader.HetJobComponents = []jobspec.HetJobComponent{
		{JobID: "leader"},
		{JobID: "sib", PreemptExempt: true},
	}

	e := NewEngine(nil, nil, zerolog.Nop())
	got := e.Candidates(preemptor, []*jobspec.Job{leader}, nodesWith(0), Params{MinExemptPriority: 1000}, nil, time.Now())

	assert.Empty(t, got, "leader exempt because a sibling component is exempt")
}

func TestCandidatesPolicyPredicate(t *testing.T) {
	preemptor := &jobspec.Job{ID: "p"}
	cand := runningJob("a", 1, nodesWith(0), time.Time{})

	e := NewEngine(func(p, c *jobspec.Job) bool { return false }, nil, zerolog.Nop())
	got := e.Candidates(preemptor, []*jobspec.Job{cand}, nodesWith(0), Params{MinExemptPriority: 1000}, nil, time.Now())

	assert.Empty(t, got)
}

func TestCandidatesReservationBorrowingOverridesPolicy(t *testing.T) {
	preemptor := &jobspec.Job{ID: "p"}
	cand := runningJob("a", 1000, nodesWith(9), time.Time{}) // disjoint nodes, above exempt priority
	resv := &jobspec.Reservation{Nodes: nodesWith(9), End: time.Now().Add(-time.Minute)}

	e := NewEngine(func(p, c *jobspec.Job) bool { return false }, nil, zerolog.Nop())
	lookup := func(j *jobspec.Job) *jobspec.Reservation { return resv }
	got := e.Candidates(preemptor, []*jobspec.Job{cand}, nodesWith(0), Params{MinExemptPriority: 100}, lookup, time.Now())

	require.Len(t, got, 1, "a job overrunning its reservation is always a candidate")
}

func TestCandidatesDefaultSortIsPriorityAscending(t *testing.T) {
	preemptor := &jobspec.Job{ID: "p"}
	low := runningJob("low", 1, nodesWith(0), time.Time{})
	high := runningJob("high", 50, nodesWith(0), time.Time{})

	e := NewEngine(nil, nil, zerolog.Nop())
	got := e.Candidates(preemptor, []*jobspec.Job{high, low}, nodesWith(0), Params{MinExemptPriority: 1000}, nil, time.Now())

	require.Len(t, got, 2)
	assert.Equal(t, "low", got[0].ID)
	assert.Equal(t, "high", got[1].ID, "highest-loss victim sorts last")
}

func TestCandidatesYoungestFirstSortsByStartDescending(t *testing.T) {
	preemptor := &jobspec.Job{ID: "p"}
	old := runningJob("old", 1, nodesWith(0), time.Now().Add(-time.Hour))
	young := runningJob("young", 1, nodesWith(0), time.Now())

	e := NewEngine(nil, nil, zerolog.Nop())
	got := e.Candidates(preemptor, []*jobspec.Job{old, young}, nodesWith(0), Params{MinExemptPriority: 1000, YoungestFirst: true}, nil, time.Now())

	require.Len(t, got, 2)
	assert.Equal(t, "young", got[0].ID)
	assert.Equal(t, "old", got[1].ID, "oldest job has the highest loss and sorts last")
}

func TestModeForHierarchy(t *testing.T) {
	assert.Equal(t, jobspec.PreemptSuspend, ModeFor(jobspec.PreemptSuspend, jobspec.PreemptCancel))
	assert.Equal(t, jobspec.PreemptSuspend, ModeFor(jobspec.PreemptCancel, jobspec.PreemptSuspend))
	assert.Equal(t, jobspec.PreemptRequeue, ModeFor(jobspec.PreemptRequeue, jobspec.PreemptCancel))
	assert.Equal(t, jobspec.PreemptCancel, ModeFor(jobspec.PreemptCancel, jobspec.PreemptCancel))
}

func TestModeForHetJobFirstNonCancelWins(t *testing.T) {
	got := ModeForHetJob([]jobspec.PreemptMode{jobspec.PreemptCancel, jobspec.PreemptSuspend, jobspec.PreemptRequeue})
	assert.Equal(t, jobspec.PreemptSuspend, got)
}

func TestModeForHetJobAllCancelDefaultsCancel(t *testing.T) {
	got := ModeForHetJob([]jobspec.PreemptMode{jobspec.PreemptCancel, jobspec.PreemptCancel})
	assert.Equal(t, jobspec.PreemptCancel, got)
}

type fakeSignaler struct {
	suspendErr, requeueErr, killErr, signalErr error
	killed, suspended, requeued               bool
	signals                                    []string
}

func (f *fakeSignaler) Suspend(job *jobspec.Job) error { f.suspended = true; return f.suspendErr }
func (f *fakeSignaler) Requeue(job *jobspec.Job) error { f.requeued = true; return f.requeueErr }
func (f *fakeSignaler) Kill(job *jobspec.Job) error    { f.killed = true; return f.killErr }
func (f *fakeSignaler) Signal(job *jobspec.Job, sig string) error {
	f.signals = append(f.signals, sig)
	return f.signalErr
}

func TestPreemptSuspendMode(t *testing.T) {
	victim := &jobspec.Job{ID: "v"}
	sig := &fakeSignaler{}
	e := NewEngine(nil, nil, zerolog.Nop())

	result, err := e.Preempt(victim, jobspec.PreemptSuspend, 0, jobspec.WarnSignal{}, time.Now(), sig)

	require.NoError(t, err)
	assert.Equal(t, ResultDone, result)
	assert.True(t, sig.suspended)
}

func TestPreemptModeFailureFallsBackToKill(t *testing.T) {
	victim := &jobspec.Job{ID: "v"}
	sig := &fakeSignaler{suspendErr: errors.New("agent unreachable")}
	e := NewEngine(nil, nil, zerolog.Nop())

	result, err := e.Preempt(victim, jobspec.PreemptSuspend, 0, jobspec.WarnSignal{}, time.Now(), sig)

	require.NoError(t, err)
	assert.Equal(t, ResultFellBackToKill, result)
	assert.True(t, sig.killed)
}

func TestPreemptCancelWithNoGraceKillsImmediately(t *testing.T) {
	victim := &jobspec.Job{ID: "v"}
	sig := &fakeSignaler{}
	e := NewEngine(nil, nil, zerolog.Nop())

	result, err := e.Preempt(victim, jobspec.PreemptCancel, 0, jobspec.WarnSignal{}, time.Now(), sig)

	require.NoError(t, err)
	assert.Equal(t, ResultDone, result)
	assert.True(t, sig.killed)
}

func TestPreemptCancelGracePeriodStateMachine(t *testing.T) {
	victim := &jobspec.Job{ID: "v", Timing: jobspec.Timing{End: time.Now().Add(time.Hour)}}
	sig := &fakeSignaler{}
	e := NewEngine(nil, nil, zerolog.Nop())
	now := time.Now()
	warn := jobspec.WarnSignal{Signal: "SIGUSR1", WarnSec: 30}

	result, err := e.Preempt(victim, jobspec.PreemptCancel, 30*time.Second, warn, now, sig)
	require.NoError(t, err)
	assert.Equal(t, ResultGraceActive, result)
	assert.False(t, sig.killed)
	assert.Equal(t, []string{"SIGCONT", "SIGUSR1"}, sig.signals)
	assert.Equal(t, now, victim.Timing.Preempt)
	assert.True(t, victim.Timing.End.Equal(now.Add(30*time.Second)))

	result, err = e.Preempt(victim, jobspec.PreemptCancel, 30*time.Second, warn, now.Add(time.Second), sig)
	require.NoError(t, err)
	assert.Equal(t, ResultGraceActive, result, "still inside grace window")
	assert.False(t, sig.killed)

	result, err = e.Preempt(victim, jobspec.PreemptCancel, 30*time.Second, warn, now.Add(time.Minute), sig)
	require.NoError(t, err)
	assert.Equal(t, ResultDone, result)
	assert.True(t, sig.killed, "kill proceeds once the grace window has elapsed")
}

func TestHetJobOutOfGrace(t *testing.T) {
	now := time.Now()
	inGrace := &jobspec.Job{Timing: jobspec.Timing{Preempt: now, End: now.Add(time.Minute)}}
	outOfGrace := &jobspec.Job{Timing: jobspec.Timing{Preempt: now.Add(-time.Hour), End: now.Add(-time.Minute)}}
	untouched := &jobspec.Job{}

	assert.False(t, HetJobOutOfGrace([]*jobspec.Job{outOfGrace, inGrace}, now))
	assert.True(t, HetJobOutOfGrace([]*jobspec.Job{outOfGrace, untouched}, now))
}
