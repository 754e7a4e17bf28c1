// Package gen produces synthetic job and reservation ids for tests and the
// schedulerd CLI's demo seeding, wrapping google/uuid per SPEC_FULL.md's
// domain-stack wiring table.
package gen
