// Package preempt implements the Preemption Engine (spec.md §4.5, component
// F): candidate enumeration and filtering for a pending preemptor, victim
// ordering, per-victim preempt-mode selection, and the grace-period state
// machine that gates a victim between "warn" and "kill".
package preempt
