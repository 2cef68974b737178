package model

import "time"

// RunStatus is the outcome of cleaning one dataset.
type RunStatus string

const (
	RunStatusProcessed RunStatus = "processed"
	RunStatusSkipped   RunStatus = "skipped"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the history record of one dataset pass.
type Run struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Status       RunStatus `json:"status"`
	Version      string    `json:"version"`
	FeaturesIn   int       `json:"features_in"`
	FeaturesOut  int       `json:"features_out"`
	RepeatedTags []string  `json:"repeated_tags,omitempty"`
	Warnings     int       `json:"warnings"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
