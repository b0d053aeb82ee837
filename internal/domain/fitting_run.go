package domain

import "time"

// FittingRunStatus enumerates the persisted lifecycle of a fitting run.
type FittingRunStatus string

const (
	FittingRunRunning   FittingRunStatus = "running"
	FittingRunSucceeded FittingRunStatus = "succeeded"
	FittingRunFailed    FittingRunStatus = "failed"
)

// FittingRun is the durable record of one virtual fitting run.
type FittingRun struct {
	ID             string
	Status         FittingRunStatus
	ProMode        bool
	ConnectionInfo string
	ImageURL       string
	VideoURL       string
	ErrorMessage   string
	VideoError     string
	ProductID      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Terminal reports whether the run will not change again.
func (r FittingRun) Terminal() bool {
	return r.Status == FittingRunSucceeded || r.Status == FittingRunFailed
}
