package depend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/warren/internal/jobspec"
)

// Parse turns a dependency string into a typed list. ',' separates AND
// entries (spec.md §4.3, "','  for AND"); the legacy single-id form
// ("123") is accepted as an implicit `afterany:123`.
//
// Array-task targets use "job_array_task", e.g. "afterok:500_*" for the
// array-wide wildcard or "afterok:500_7" for a specific task.
func Parse(s string) ([]jobspec.Dependency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var deps []jobspec.Dependency
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		d, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, nil
}

func parseEntry(entry string) (jobspec.Dependency, error) {
	typ, rest, hasType := strings.Cut(entry, ":")
	if !hasType {
		// Legacy bare-id form.
		jobID, taskID, err := parseTarget(entry)
		if err != nil {
			return jobspec.Dependency{}, err
		}
		return jobspec.Dependency{Type: jobspec.DepAfterAny, TargetJobID: jobID, TargetArrayTaskID: taskID}, nil
	}

	depType := jobspec.DepType(strings.ToLower(typ))
	switch depType {
	case jobspec.DepAfter, jobspec.DepAfterAny, jobspec.DepAfterOK, jobspec.DepAfterNotOK, jobspec.DepExpand:
		jobID, taskID, err := parseTarget(rest)
		if err != nil {
			return jobspec.Dependency{}, err
		}
		return jobspec.Dependency{Type: depType, TargetJobID: jobID, TargetArrayTaskID: taskID}, nil
	case jobspec.DepSingleton:
		return jobspec.Dependency{Type: jobspec.DepSingleton}, nil
	default:
		return jobspec.Dependency{}, fmt.Errorf("unknown dependency type %q", typ)
	}
}

// parseTarget splits "jobid" or "jobid_taskid" or "jobid_*" into a job id
// and an array task id (jobspec.WildcardTask for "*" or a bare job id).
func parseTarget(s string) (jobID string, taskID int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, fmt.Errorf("empty dependency target")
	}
	jobPart, taskPart, hasTask := strings.Cut(s, "_")
	if !hasTask {
		return jobPart, jobspec.WildcardTask, nil
	}
	if taskPart == "*" {
		return jobPart, jobspec.WildcardTask, nil
	}
	n, err := strconv.Atoi(taskPart)
	if err != nil {
		return "", 0, fmt.Errorf("invalid array task id %q: %w", taskPart, err)
	}
	return jobPart, n, nil
}
