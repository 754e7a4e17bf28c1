// Package jobspec defines the core data model shared by every scheduling
// component: jobs, partitions, reservations, licenses and gang rows.
//
// It deliberately owns no persistence and no locking of its own — per-field
// mutation discipline (who may write what, under which lock) is documented
// on the owning component (queue, license, gang, preempt), not here. This
// mirrors the teacher's pkg/types: plain structs, no behavior.
package jobspec
