package scheduler

import (
	"time"

	"github.com/cuemby/warren/internal/config"
	"github.com/cuemby/warren/internal/depend"
	"github.com/cuemby/warren/internal/jobspec"
	"github.com/cuemby/warren/internal/license"
	"github.com/cuemby/warren/internal/metrics"
	"github.com/cuemby/warren/internal/placement"
	"github.com/cuemby/warren/internal/queue"
	"github.com/rs/zerolog"
)

// Deps bundles every collaborator the loop needs. Licenses may be nil if
// the cluster has none configured.
type Deps struct {
	Table     JobTable
	FrontEnd  FrontEnd
	Policy    PolicyChecks
	Placement *placement.Driver
	Licenses  *license.Pool
	Starter   Starter
	Spawner   ArraySpawner
	RPC       RPCPressure
	Config    *config.Config
	Logger    zerolog.Logger
}

// Loop implements the Main Scheduler Loop (spec.md §4.1, component
// orchestrating A-E and H).
type Loop struct {
	deps Deps

	avail        map[string]*jobspec.NodeBitmap
	failedParts  map[string]bool
	failedResv   map[string]bool
	failedArrays map[string]bool
	depCache     *depend.Cache
}

// NewLoop constructs a Loop over deps.
func NewLoop(deps Deps) *Loop {
	return &Loop{deps: deps}
}

// Result summarizes one cycle.
type Result struct {
	Started int
	Cutoff  string // "exhausted" once every candidate was examined, including an empty queue
}

// Run executes one scheduling cycle (spec.md §4.1). now is the cycle's
// notion of wall-clock time, threaded through for deterministic tests.
func (l *Loop) Run(now time.Time) Result {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CycleDuration)

	l.avail = make(map[string]*jobspec.NodeBitmap)
	l.failedParts = make(map[string]bool)
	l.failedResv = make(map[string]bool)
	l.failedArrays = make(map[string]bool)
	l.depCache = depend.NewCache()

	if l.deps.FrontEnd != nil && !l.deps.FrontEnd.Up() {
		l.markAllTransient()
		metrics.CycleCutoffTotal.WithLabelValues("frontend_down").Inc()
		return Result{Cutoff: "frontend_down"}
	}
	if !l.deps.Config.WikiCompat && l.anyCompleting() {
		metrics.CycleCutoffTotal.WithLabelValues("completing").Inc()
		return Result{Cutoff: "completing"}
	}

	candidates := queue.Build(l.deps.Table.PendingJobs(), l.deps.Config.BuildQueueTimeout, nil, l.deps.Logger)
	metrics.QueueDepth.Set(float64(len(candidates)))
	queue.Sort(candidates, nil, l.partitionTier)

	started := 0
	for i := 0; i < len(candidates); i++ {
		cand := candidates[i]

		if cutoff := l.checkCutoffs(now, started, i); cutoff != "" {
			metrics.CycleCutoffTotal.WithLabelValues(cutoff).Inc()
			return Result{Started: started, Cutoff: cutoff}
		}

		if cand.Job.ArrayJobID != "" && l.failedArrays[arrayKey(cand.Job.ArrayJobID, cand.Partition)] {
			continue
		}

		outcome := l.processCandidate(cand, now)
		switch outcome {
		case outcomeStarted:
			started++
			l.amplifyArray(cand, now, &started)
		case outcomeNeverRunnable:
			if cand.Job.ArrayJobID != "" {
				l.failedArrays[arrayKey(cand.Job.ArrayJobID, cand.Partition)] = true
			}
		}
	}

	metrics.CycleCutoffTotal.WithLabelValues("exhausted").Inc()
	return Result{Started: started, Cutoff: "exhausted"}
}

func (l *Loop) checkCutoffs(start time.Time, started, examined int) string {
	cfg := l.deps.Config
	if cfg.MaxSchedTime > 0 && time.Since(start) > cfg.MaxSchedTime {
		return "time"
	}
	if l.deps.RPC != nil && cfg.MaxRPCCount > 0 && l.deps.RPC.InflightCount() > cfg.MaxRPCCount {
		return "rpc_pressure"
	}
	if cfg.SchedMaxJobStart > 0 && started >= cfg.SchedMaxJobStart {
		return "start_count"
	}
	if cfg.DefaultQueueDepth > 0 && examined >= cfg.DefaultQueueDepth {
		return "depth"
	}
	return ""
}

// amplifyArray implements spec.md §4.1 "Array-task amplification": once an
// array head starts, the loop keeps starting the array's next task before
// returning to the outer candidate list.
func (l *Loop) amplifyArray(cand queue.Candidate, now time.Time, started *int) {
	if l.deps.Spawner == nil || cand.Job.ArrayJobID == "" {
		return
	}
	for {
		next := l.deps.Spawner.NextTask(cand.Job.ArrayJobID)
		if next == nil {
			return
		}
		nc := queue.Candidate{Job: next, Partition: cand.Partition, Priority: cand.Priority, HasReservation: next.Reservation != ""}
		outcome := l.processCandidate(nc, now)
		if outcome != outcomeStarted {
			return
		}
		*started++
	}
}

func (l *Loop) partitionTier(name string) int32 {
	part, ok := l.deps.Table.Partition(name)
	if !ok {
		return 0
	}
	return part.PriorityTier
}

func (l *Loop) markAllTransient() {
	for _, job := range l.deps.Table.PendingJobs() {
		job.Reason = jobspec.ReasonFrontEndDown
	}
}

func (l *Loop) anyCompleting() bool {
	for _, job := range l.deps.Table.RunningJobs() {
		if job.Completing {
			return true
		}
	}
	return false
}

func arrayKey(arrayJobID, partition string) string { return arrayJobID + "@" + partition }
