package engine

import "errors"

var (
	// ErrTriggerRejected indicates no pipeline's filter matched the event.
	ErrTriggerRejected = errors.New("trigger rejected")
	// ErrDuplicateRun indicates every matching pipeline already has a
	// running run for the event's de-duplication key.
	ErrDuplicateRun = errors.New("duplicate run")
)
