// Package scheduler implements the Main Scheduler Loop (spec.md §4.1): it
// wires the Queue Builder/Sorter, Dependency Resolver, License Engine, and
// Placement Driver together into the per-cycle step sequence, applying the
// documented filters in order and the failed-partition/reservation
// bookkeeping that lets later, lower-priority candidates skip a cycle's
// already-exhausted capacity.
package scheduler
