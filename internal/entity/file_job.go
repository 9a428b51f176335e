package entity

import (
	"time"

	"github.com/google/uuid"
)

// FileJob represents the processing of one input file within a run.
type FileJob struct {
	ID           uuid.UUID  `json:"id"`
	RunID        uuid.UUID  `json:"run_id"`
	SourcePath   string     `json:"source_path"`
	OutputPath   string     `json:"output_path"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	Replacements int        `json:"replacements"`
	Deletions    int        `json:"deletions"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
