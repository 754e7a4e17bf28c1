package controlapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/warren/internal/config"
	"github.com/cuemby/warren/internal/epilog"
	"github.com/cuemby/warren/internal/jobspec"
	"github.com/cuemby/warren/internal/preempt"
	"github.com/cuemby/warren/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	jobs       map[string]*jobspec.Job
	running    []*jobspec.Job
	partitions map[string]*jobspec.Partition
}

func newFakeTable() *fakeTable {
	return &fakeTable{jobs: make(map[string]*jobspec.Job), partitions: make(map[string]*jobspec.Partition)}
}

func (t *fakeTable) Job(id string) (*jobspec.Job, bool) { j, ok := t.jobs[id]; return j, ok }
func (t *fakeTable) ArrayTasks(string) []*jobspec.Job   { return nil }
func (t *fakeTable) SingletonConflict(string, string, string) bool { return false }
func (t *fakeTable) PendingJobs() []*jobspec.Job        { return nil }
func (t *fakeTable) RunningJobs() []*jobspec.Job        { return t.running }
func (t *fakeTable) Partition(name string) (*jobspec.Partition, bool) {
	p, ok := t.partitions[name]
	return p, ok
}
func (t *fakeTable) Reservation(string) (*jobspec.Reservation, bool) { return nil, false }

func baseConfig() *config.Config {
	cfg := config.Default()
	cfg.MaxSchedTime = time.Hour
	return cfg
}

func newTestServer(table *fakeTable, preemptor *Preemptor) *Server {
	loop := scheduler.NewLoop(scheduler.Deps{Table: table, Config: baseConfig(), Logger: zerolog.Nop()})
	return NewServer(Deps{Loop: loop, Table: table, Preempt: preemptor, Logger: zerolog.Nop()})
}

func TestHandleScheduleRunsOneCycle(t *testing.T) {
	table := newFakeTable()
	srv := newTestServer(table, nil)

	req := httptest.NewRequest(http.MethodPost, "/schedule", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "exhausted", body.Cutoff)
}

func TestHandleHealthzReportsOK(t *testing.T) {
	srv := newTestServer(newFakeTable(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body healthzResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestHandleFindPreemptableReturns404ForUnknownJob(t *testing.T) {
	engine := preempt.NewEngine(nil, nil, zerolog.Nop())
	srv := newTestServer(newFakeTable(), &Preemptor{Engine: engine})

	req := httptest.NewRequest(http.MethodGet, "/find_preemptable_jobs?job_id=missing", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFindPreemptableReturns409WhenPreemptionUnconfigured(t *testing.T) {
	table := newFakeTable()
	table.jobs["high"] = &jobspec.Job{ID: "high", State: jobspec.JobPending}
	srv := newTestServer(table, nil)

	req := httptest.NewRequest(http.MethodGet, "/find_preemptable_jobs?job_id=high", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleFindPreemptableListsCandidates(t *testing.T) {
	bm := jobspec.NewNodeBitmap(4)
	bm.Set(0)

	preemptor := &jobspec.Job{ID: "high", State: jobspec.JobPending, Priority: 100, RequiredNodes: bm}
	victim := &jobspec.Job{ID: "low", State: jobspec.JobRunning, Priority: 1, NodeBitmap: bm}

	table := newFakeTable()
	table.jobs["high"] = preemptor
	table.running = []*jobspec.Job{victim}

	engine := preempt.NewEngine(nil, nil, zerolog.Nop())
	srv := newTestServer(table, &Preemptor{Engine: engine})

	req := httptest.NewRequest(http.MethodGet, "/find_preemptable_jobs?job_id=high", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body []preemptableJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "low", body[0].JobID)
}

func TestHandleFindPreemptableMissingJobIDIsBadRequest(t *testing.T) {
	engine := preempt.NewEngine(nil, nil, zerolog.Nop())
	srv := newTestServer(newFakeTable(), &Preemptor{Engine: engine})

	req := httptest.NewRequest(http.MethodGet, "/find_preemptable_jobs", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeRequeuer struct {
	requeued []string
	killed   []string
}

func (r *fakeRequeuer) Requeue(job *jobspec.Job) error {
	r.requeued = append(r.requeued, job.ID)
	return nil
}

func (r *fakeRequeuer) Kill(job *jobspec.Job) error {
	r.killed = append(r.killed, job.ID)
	return nil
}

func TestHandleEpilogCompleteClearsCompletingWhenNoNodesRemain(t *testing.T) {
	table := newFakeTable()
	table.jobs["j1"] = &jobspec.Job{ID: "j1", Completing: true}

	loop := scheduler.NewLoop(scheduler.Deps{Table: table, Config: baseConfig(), Logger: zerolog.Nop()})
	srv := NewServer(Deps{Loop: loop, Table: table, Epilog: epilog.NewInterlock(nil, &fakeRequeuer{}, zerolog.Nop()), Logger: zerolog.Nop()})

	req := httptest.NewRequest(http.MethodPost, "/epilog_complete?job_id=j1&remaining_nodes=0", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, table.jobs["j1"].Completing)
}

func TestHandlePrologFailedRequeuesOnFirstFailure(t *testing.T) {
	table := newFakeTable()
	table.jobs["j1"] = &jobspec.Job{ID: "j1", State: jobspec.JobRunning}

	rq := &fakeRequeuer{}
	loop := scheduler.NewLoop(scheduler.Deps{Table: table, Config: baseConfig(), Logger: zerolog.Nop()})
	srv := NewServer(Deps{Loop: loop, Table: table, Epilog: epilog.NewInterlock(nil, rq, zerolog.Nop()), Logger: zerolog.Nop()})

	req := httptest.NewRequest(http.MethodPost, "/prolog_failed?job_id=j1", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"j1"}, rq.requeued)
	assert.Empty(t, rq.killed)
}

func TestHandleEpilogCompleteReturns409WhenUnconfigured(t *testing.T) {
	srv := newTestServer(newFakeTable(), nil)

	req := httptest.NewRequest(http.MethodPost, "/epilog_complete?job_id=j1&remaining_nodes=0", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	srv := newTestServer(newFakeTable(), nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
