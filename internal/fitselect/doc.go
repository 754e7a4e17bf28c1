// Package fitselect is a minimal first-fit placement.Selector: it walks a
// partition's available-node bitmap in index order and claims the first
// reqNodes bits it finds free. Real topology-aware node selection is a
// spec Non-goal delegated to the surrounding system; this implementation
// exists so schedulerd's serve and schedule-once commands have a concrete
// Selector to drive the Placement Driver against, the same way
// internal/jobtable stands in for the external job record store.
package fitselect
