// Package jobtable is an in-memory job/partition/reservation store
// implementing scheduler.JobTable, scheduler.Starter and
// scheduler.ArraySpawner (spec.md §1 Non-goals: true job-record
// persistence is out of scope for the scheduling core, but schedulerd
// still needs a concrete collaborator to run against).
//
// Adapted from the teacher's pkg/manager.WarrenFSM: the same
// sync.RWMutex-guarded map-of-pointers caching idiom, without the
// raft.Log-driven Apply dispatch — there is no consensus group here,
// just a single foreground scheduler (spec.md §5).
package jobtable
