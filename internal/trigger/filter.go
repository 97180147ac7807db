package trigger

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conveyor-ci/conveyor/internal/pipeline"
)

// Pattern represents a compiled filter condition supporting substring and
// regex matching. Raw strings wrapped in slashes (`/.../`) compile as
// regular expressions; anything else matches case-insensitively as a
// substring.
type Pattern struct {
	regex *regexp.Regexp
	lower string
}

// Compile transforms raw pattern strings into Pattern values.
func Compile(patterns []string) ([]Pattern, error) {
	result := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") && len(raw) >= 2 {
			expr := raw[1 : len(raw)-1]
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("compile regexp %q: %w", raw, err)
			}
			result = append(result, Pattern{regex: re})
			continue
		}
		result = append(result, Pattern{lower: strings.ToLower(raw)})
	}
	return result, nil
}

// Match reports whether the pattern matches the supplied string.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.lower)
}

// Filter is a compiled trigger filter for one pipeline.
type Filter struct {
	events   map[string]struct{}
	branches []Pattern
}

// CompileFilter builds a Filter from a pipeline's trigger spec. An empty
// events list matches every event type; an empty branches list matches
// every branch.
func CompileFilter(spec pipeline.TriggerSpec) (Filter, error) {
	f := Filter{}
	if len(spec.Events) > 0 {
		f.events = make(map[string]struct{}, len(spec.Events))
		for _, ev := range spec.Events {
			f.events[strings.ToLower(strings.TrimSpace(ev))] = struct{}{}
		}
	}
	branches, err := Compile(spec.Branches)
	if err != nil {
		return Filter{}, err
	}
	f.branches = branches
	return f, nil
}

// Matches reports whether the event should start a run of the pipeline
// this filter belongs to.
func (f Filter) Matches(ev Event) bool {
	if f.events != nil {
		if _, ok := f.events[strings.ToLower(ev.Type)]; !ok {
			return false
		}
	}
	if len(f.branches) == 0 {
		return true
	}
	for _, p := range f.branches {
		if p.Match(ev.Branch) {
			return true
		}
	}
	return false
}
