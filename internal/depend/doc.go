// Package depend implements the Dependency Resolver (spec.md §4.3,
// component C): parsing a job's dependency string into typed entries,
// evaluating each against its target's current state, and propagating
// failure. It never mutates job state itself — callers apply the
// returned Verdict.
package depend
