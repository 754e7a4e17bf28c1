// Package epilog implements the Epilog/Prolog interlock (spec.md §4.7,
// component H): clearing the Completing flag once an epilog finishes, and
// requeue-or-kill on a failed prolog. It runs detached from the scheduler
// loop and must tolerate arbitrary interleaving with it.
package epilog
