package trigger

import "time"

// Event describes an external trigger (code push, pull request, tag,
// manual invocation) that may start pipeline runs.
type Event struct {
	Type       string    `json:"event"`
	Branch     string    `json:"branch"`
	CommitSHA  string    `json:"commit_sha,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// DedupKey identifies the logical stream of work an event belongs to.
// When de-duplication is enabled, at most one run per pipeline and key
// may be running at a time.
func (e Event) DedupKey() string {
	return e.Branch
}
