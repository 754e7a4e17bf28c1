package depend

import "github.com/cuemby/warren/internal/jobspec"

// CheckCycle reports whether adding candidateDeps to job selfJobID would
// create a circular dependency (spec.md §4.3). The scan is a bounded-depth
// recursive walk, not exhaustive cycle detection: for any chain longer than
// maxDepth it returns false rather than continuing forever (spec.md §8,
// "for any chain of length > max_depend_depth, detection returns FALSE").
func CheckCycle(selfJobID string, candidateDeps []jobspec.Dependency, lookup TargetLookup, maxDepth int) bool {
	for _, dep := range candidateDeps {
		if dep.Type == jobspec.DepSingleton {
			continue
		}
		if reaches(dep.TargetJobID, selfJobID, lookup, maxDepth, map[string]bool{})  {
			return true
		}
	}
	return false
}

// reaches reports whether starting from jobID and following its current
// dependency list, we can reach target within depth steps.
func reaches(jobID, target string, lookup TargetLookup, depth int, visited map[string]bool) bool {
	if depth <= 0 {
		return false
	}
	if jobID == target {
		return true
	}
	if visited[jobID] {
		return false
	}
	visited[jobID] = true

	job, ok := lookup.Job(jobID)
	if !ok {
		return false
	}
	for _, dep := range job.Dependencies {
		if dep.Type == jobspec.DepSingleton {
			continue
		}
		if reaches(dep.TargetJobID, target, lookup, depth-1, visited) {
			return true
		}
	}
	return false
}
