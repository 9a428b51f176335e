package entity

import (
	"time"

	"github.com/google/uuid"
)

// Run represents one batch invocation for data transfer between layers.
type Run struct {
	ID               uuid.UUID  `json:"id"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	ReplacementDigit string     `json:"replacement_digit"`
	InputDir         string     `json:"input_dir"`
	OutputDir        string     `json:"output_dir"`
	Succeeded        int        `json:"succeeded"`
	Failed           int        `json:"failed"`
	Status           string     `json:"status"`
}
