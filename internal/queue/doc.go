// Package queue implements the Queue Builder and Sorter (spec.md §4.2,
// components A and B): walking the job table once per cycle into a flat
// list of (job, partition, priority) candidates, then imposing the total
// order the Main Scheduler Loop iterates.
package queue
