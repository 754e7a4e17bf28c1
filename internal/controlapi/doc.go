// Package controlapi exposes a thin HTTP control surface over the
// scheduling core: trigger a cycle, inspect preemption candidates, and the
// usual /healthz and /metrics. It mirrors how jontk-slurm-client models
// Slurm's REST surface, routed with gorilla/mux in the teacher's
// net/http.Server style (pkg/api.HealthServer).
package controlapi
