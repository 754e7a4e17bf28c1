// Package checkpoint persists the license pool, gang row ordering, and job
// `licenses_allocated` strings to a local embedded store so a restarted
// scheduler can resume without losing this in-memory state (spec.md §6
// "Persisted state"). Modeled on the teacher's storage.BoltStore: one
// bbolt database, one bucket per record kind, JSON-encoded values.
package checkpoint
