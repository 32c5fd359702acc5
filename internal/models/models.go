package models

import "time"

// Status is the outcome of a run or step.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Run represents one execution of a lifecycle scenario.
type Run struct {
	ID             string
	MasterAccount  string
	FactoryAccount string
	DAOAccount     string
	Network        string
	Phases         []string
	Status         Status
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// StepResult represents the outcome of a single scenario step.
type StepResult struct {
	RunID     string
	Seq       int
	Name      string
	Phase     string
	Status    Status
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// ArtifactRecord represents a contract binary hashed during a run.
// Hash is the Base58 content address of the bytecode.
type ArtifactRecord struct {
	RunID string
	Label string
	Path  string
	Hash  string
	Size  int
}
