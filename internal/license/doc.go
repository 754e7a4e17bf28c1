// Package license implements the License / Consumable-Resource Accountant
// (spec.md §4.4, component D): the cluster license pool, AND/OR job
// allocation, hierarchical node-bound ("hres") filtering, reservation
// sub-pools, a lightweight backfill projection, and remote accounting-DB
// reconciliation.
//
// A single sync.Mutex guards every pool mutation (spec.md §5, "License
// mutex"); queries that can tolerate a snapshot should take a BFView
// (Pool.Snapshot) instead of holding the lock.
package license
