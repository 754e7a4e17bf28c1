package license

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/warren/internal/jobspec"
)

// ParsedEntry is one (name, count) pair extracted from a license string,
// before binding to the global pool.
type ParsedEntry struct {
	Name  string
	Count uint32
}

// Parse reads a license string such as "db:4,compiler:8" (AND) or
// "matlab:2|comsol:2" (OR). ',' and ';' both mean AND; '|' means OR. Mixing
// the two operators in one string is rejected (spec.md §4.4 "Construction",
// "OR ('|') and AND (',' / ';') in one submission are mutually exclusive").
func Parse(s string) ([]ParsedEntry, jobspec.LicenseOperator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, jobspec.LicenseAND, nil
	}

	hasOr := strings.Contains(s, "|")
	hasAnd := strings.ContainsAny(s, ",;")
	if hasOr && hasAnd {
		return nil, "", fmt.Errorf("license string %q mixes AND and OR operators", s)
	}

	op := jobspec.LicenseAND
	var parts []string
	if hasOr {
		op = jobspec.LicenseOR
		parts = strings.Split(s, "|")
	} else {
		parts = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	}

	entries := make([]ParsedEntry, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, countStr, ok := strings.Cut(p, ":")
		if !ok {
			return nil, "", fmt.Errorf("license entry %q missing count", p)
		}
		count, err := strconv.ParseUint(strings.TrimSpace(countStr), 10, 32)
		if err != nil {
			return nil, "", fmt.Errorf("license entry %q has invalid count: %w", p, err)
		}
		entries = append(entries, ParsedEntry{Name: strings.TrimSpace(name), Count: uint32(count)})
	}
	return entries, op, nil
}
