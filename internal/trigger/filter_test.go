package trigger

import (
	"testing"

	"github.com/conveyor-ci/conveyor/internal/pipeline"
)

func TestPatternSubstring(t *testing.T) {
	patterns, err := Compile([]string{"main"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !patterns[0].Match("Main") {
		t.Fatalf("substring match should be case-insensitive")
	}
	if patterns[0].Match("develop") {
		t.Fatalf("unexpected match")
	}
	if patterns[0].Match("") {
		t.Fatalf("empty string should never match")
	}
}

func TestPatternRegex(t *testing.T) {
	patterns, err := Compile([]string{`/^release\/.+$/`})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !patterns[0].Match("release/2.0") {
		t.Fatalf("expected regex match")
	}
	if patterns[0].Match("hotfix/release") {
		t.Fatalf("anchored regex should not match")
	}
}

func TestPatternInvalidRegex(t *testing.T) {
	if _, err := Compile([]string{"/[/"}); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestCompileSkipsBlank(t *testing.T) {
	patterns, err := Compile([]string{" ", ""})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(patterns) != 0 {
		t.Fatalf("expected no patterns, got %d", len(patterns))
	}
}

func TestFilterMatches(t *testing.T) {
	f, err := CompileFilter(pipeline.TriggerSpec{
		Events:   []string{"push", "tag"},
		Branches: []string{"main", `/^release\/.+$/`},
	})
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}

	cases := []struct {
		name string
		ev   Event
		want bool
	}{
		{"push to main", Event{Type: "push", Branch: "main"}, true},
		{"push to release branch", Event{Type: "push", Branch: "release/2.0"}, true},
		{"event case-insensitive", Event{Type: "Push", Branch: "main"}, true},
		{"wrong event", Event{Type: "pull_request", Branch: "main"}, false},
		{"wrong branch", Event{Type: "push", Branch: "develop"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.Matches(tc.ev); got != tc.want {
				t.Fatalf("Matches(%+v) = %v, want %v", tc.ev, got, tc.want)
			}
		})
	}
}

func TestFilterEmptySpecMatchesEverything(t *testing.T) {
	f, err := CompileFilter(pipeline.TriggerSpec{})
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}
	if !f.Matches(Event{Type: "push", Branch: "anything"}) {
		t.Fatalf("empty filter should match every event")
	}
}

func TestFilterEventsOnly(t *testing.T) {
	f, err := CompileFilter(pipeline.TriggerSpec{Events: []string{"push"}})
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}
	if !f.Matches(Event{Type: "push", Branch: "any"}) {
		t.Fatalf("no branch patterns means every branch matches")
	}
}

func TestDedupKey(t *testing.T) {
	ev := Event{Type: "push", Branch: "main", CommitSHA: "abc"}
	if ev.DedupKey() != "main" {
		t.Fatalf("unexpected dedup key %q", ev.DedupKey())
	}
}
