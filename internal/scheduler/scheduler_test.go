package scheduler

import (
	"testing"
	"time"

	"github.com/cuemby/warren/internal/config"
	"github.com/cuemby/warren/internal/jobspec"
	"github.com/cuemby/warren/internal/placement"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeBitmap(bits ...int) *jobspec.NodeBitmap {
	b := jobspec.NewNodeBitmap(64)
	for _, n := range bits {
		b.Set(n)
	}
	return b
}

type fakeTable struct {
	order        []string
	jobs         map[string]*jobspec.Job
	partitions   map[string]*jobspec.Partition
	reservations map[string]*jobspec.Reservation
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		jobs:         make(map[string]*jobspec.Job),
		partitions:   make(map[string]*jobspec.Partition),
		reservations: make(map[string]*jobspec.Reservation),
	}
}

func (t *fakeTable) addJob(j *jobspec.Job) {
	t.jobs[j.ID] = j
	t.order = append(t.order, j.ID)
}

func (t *fakeTable) Job(id string) (*jobspec.Job, bool) { j, ok := t.jobs[id]; return j, ok }
func (t *fakeTable) ArrayTasks(string) []*jobspec.Job   { return nil }
func (t *fakeTable) SingletonConflict(string, string, string) bool { return false }

func (t *fakeTable) PendingJobs() []*jobspec.Job {
	var out []*jobspec.Job
	for _, id := range t.order {
		if j := t.jobs[id]; j.IsPending() {
			out = append(out, j)
		}
	}
	return out
}

func (t *fakeTable) RunningJobs() []*jobspec.Job {
	var out []*jobspec.Job
	for _, id := range t.order {
		if j := t.jobs[id]; j.State == jobspec.JobRunning {
			out = append(out, j)
		}
	}
	return out
}

func (t *fakeTable) Partition(name string) (*jobspec.Partition, bool) {
	p, ok := t.partitions[name]
	return p, ok
}

func (t *fakeTable) Reservation(name string) (*jobspec.Reservation, bool) {
	r, ok := t.reservations[name]
	return r, ok
}

type fakeStarter struct{ started []string }

func (f *fakeStarter) Start(job *jobspec.Job, partition string, nodes *jobspec.NodeBitmap, preemptees []string) error {
	f.started = append(f.started, job.ID)
	return nil
}

type fakeFrontEnd struct{ up bool }

func (f *fakeFrontEnd) Up() bool { return f.up }

type fakeSelector struct {
	outcome placement.SelectorOutcome
	chosen  *jobspec.NodeBitmap
}

func (f *fakeSelector) Test(job *jobspec.Job, partition *jobspec.Partition, avail *jobspec.NodeBitmap, minNodes, maxNodes, reqNodes int, mode placement.SelectMode) (placement.SelectorOutcome, *jobspec.NodeBitmap, []string, error) {
	return f.outcome, f.chosen, nil, nil
}

func baseConfig() *config.Config {
	cfg := config.Default()
	cfg.MaxSchedTime = time.Hour
	return cfg
}

func TestRunStartsEligibleJob(t *testing.T) {
	table := newFakeTable()
	job := &jobspec.Job{ID: "1", State: jobspec.JobPending, Partition: "default", Priority: 1, Timing: jobspec.Timing{Submit: time.Now()}}
	table.addJob(job)
	table.partitions["default"] = &jobspec.Partition{Name: "default", Nodes: nodeBitmap(0), State: jobspec.PartitionUp}

	sel := &fakeSelector{outcome: placement.SelectorOK, chosen: nodeBitmap(0)}
	starter := &fakeStarter{}
	loop := NewLoop(Deps{
		Table:     table,
		Placement: placement.NewDriver(sel, zerolog.Nop()),
		Starter:   starter,
		Config:    baseConfig(),
		Logger:    zerolog.Nop(),
	})

	result := loop.Run(time.Now())

	assert.Equal(t, 1, result.Started)
	assert.Contains(t, starter.started, "1")
	assert.Equal(t, jobspec.JobRunning, job.State)
}

func TestRunAbortsWhenFrontEndDown(t *testing.T) {
	table := newFakeTable()
	job := &jobspec.Job{ID: "1", State: jobspec.JobPending}
	table.addJob(job)

	loop := NewLoop(Deps{Table: table, FrontEnd: &fakeFrontEnd{up: false}, Config: baseConfig(), Logger: zerolog.Nop()})
	result := loop.Run(time.Now())

	assert.Equal(t, "frontend_down", result.Cutoff)
	assert.Equal(t, jobspec.ReasonFrontEndDown, job.Reason)
}

func TestRunSkipsCycleWhenJobIsCompleting(t *testing.T) {
	table := newFakeTable()
	running := &jobspec.Job{ID: "r", State: jobspec.JobRunning, Completing: true}
	table.addJob(running)

	loop := NewLoop(Deps{Table: table, Config: baseConfig(), Logger: zerolog.Nop()})
	result := loop.Run(time.Now())

	assert.Equal(t, "completing", result.Cutoff)
}

func TestRunWikiCompatIgnoresCompleting(t *testing.T) {
	table := newFakeTable()
	running := &jobspec.Job{ID: "r", State: jobspec.JobRunning, Completing: true}
	table.addJob(running)

	cfg := baseConfig()
	cfg.WikiCompat = true
	loop := NewLoop(Deps{Table: table, Config: cfg, Logger: zerolog.Nop()})
	result := loop.Run(time.Now())

	assert.NotEqual(t, "completing", result.Cutoff)
}

func TestRunPoisonsPartitionAfterNodesBusy(t *testing.T) {
	table := newFakeTable()
	high := &jobspec.Job{ID: "high", State: jobspec.JobPending, Partition: "default", Priority: 10, Timing: jobspec.Timing{Submit: time.Now().Add(-time.Hour)}}
	low := &jobspec.Job{ID: "low", State: jobspec.JobPending, Partition: "default", Priority: 1, Timing: jobspec.Timing{Submit: time.Now().Add(-time.Hour)}}
	table.addJob(high)
	table.addJob(low)
	table.partitions["default"] = &jobspec.Partition{Name: "default", Nodes: nodeBitmap(0), State: jobspec.PartitionUp}

	sel := &fakeSelector{outcome: placement.SelectorBusy}
	loop := NewLoop(Deps{
		Table:     table,
		Placement: placement.NewDriver(sel, zerolog.Nop()),
		Starter:   &fakeStarter{},
		Config:    baseConfig(),
		Logger:    zerolog.Nop(),
	})

	result := loop.Run(time.Now())

	require.Equal(t, 0, result.Started)
	assert.Equal(t, jobspec.ReasonNodesBusy, high.Reason)
	assert.Equal(t, jobspec.ReasonNone, low.Reason, "low skipped outright once its partition was poisoned")
}

func TestRunNeverRunnableFailsJobWithFixedExitCode(t *testing.T) {
	table := newFakeTable()
	job := &jobspec.Job{ID: "1", State: jobspec.JobPending, Partition: "default", Resources: jobspec.ResourceRequest{MinNodes: 10}}
	table.addJob(job)
	table.partitions["default"] = &jobspec.Partition{Name: "default", Nodes: nodeBitmap(0), State: jobspec.PartitionUp}

	loop := NewLoop(Deps{
		Table:     table,
		Placement: placement.NewDriver(&fakeSelector{}, zerolog.Nop()),
		Starter:   &fakeStarter{},
		Config:    baseConfig(),
		Logger:    zerolog.Nop(),
	})

	loop.Run(time.Now())

	assert.Equal(t, jobspec.JobFailed, job.State)
	assert.Equal(t, jobspec.ReasonBadConstraints, job.Reason)
	assert.EqualValues(t, jobspec.NeverRunnableExitCode, job.ExitCode)
	assert.Zero(t, job.Priority)
}

func TestRunDependencyNotReadySkipsWithoutFailing(t *testing.T) {
	table := newFakeTable()
	job := &jobspec.Job{
		ID: "1", State: jobspec.JobPending, Partition: "default",
		Dependencies: []jobspec.Dependency{{Type: jobspec.DepAfterOK, TargetJobID: "999"}},
	}
	table.addJob(job)
	table.partitions["default"] = &jobspec.Partition{Name: "default", Nodes: nodeBitmap(0), State: jobspec.PartitionUp}

	loop := NewLoop(Deps{Table: table, Config: baseConfig(), Logger: zerolog.Nop()})
	result := loop.Run(time.Now())

	assert.Equal(t, 0, result.Started)
	assert.Equal(t, jobspec.JobPending, job.State)
	assert.Equal(t, jobspec.ReasonDependency, job.Reason)
}
