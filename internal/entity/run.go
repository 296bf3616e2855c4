package entity

import "time"

type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Trigger describes what started a run.
type Trigger struct {
	Source string `json:"source"` // "cli", "api", "hook"
	Ref    string `json:"ref,omitempty"`
}

type Run struct {
	ID         ID                `json:"id"`
	UID        string            `json:"uid"`
	Trigger    string            `json:"trigger"`
	Ref        string            `json:"ref,omitempty"`
	CommitSHA  string            `json:"commit_sha,omitempty"`
	ImageTag   string            `json:"image_tag,omitempty"`
	ImageURI   string            `json:"image_uri,omitempty"`
	Status     RunStatus         `json:"status"`
	Error      string            `json:"error,omitempty"`
	Stages     []*StageExecution `json:"stages,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitzero"`
}

type StageExecution struct {
	ID         ID        `json:"id"`
	RunID      ID        `json:"run_id"`
	Name       string    `json:"name"`
	Position   int       `json:"position"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

func (s *StageExecution) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
