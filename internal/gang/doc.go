// Package gang implements the Gang Time-Slicer (spec.md §4.6, component G):
// per-partition coscheduled rows, cross-partition shadowing, fixed-slice
// rotation, and reconfiguration rebuild.
package gang
