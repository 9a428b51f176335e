package constants

// JobStatus is the canonical status for rows in file_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning   JobStatus = "RUNNING"   // in progress
	JobStatusSucceeded JobStatus = "SUCCEEDED" // saved (or nothing to save for sketches)
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure
	JobStatusSkipped   JobStatus = "SKIPPED"   // unsupported extension
)

// RunStatus is the canonical status for rows in runs.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusAborted  RunStatus = "ABORTED" // session could not be recreated
)
