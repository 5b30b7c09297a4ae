package dto

import "time"

type RunInput struct {
	// Direction is "both", "upload" or "download". Empty means both.
	Direction string
}

type FailureOutput struct {
	ProjectKey string
	Phase      string
	Kind       string
	Reason     string
}

type OutcomeOutput struct {
	ProjectKey string
	ProjectID  string
	Name       string
	Phase      string
	State      string
	Action     string
	Reason     string
	Warnings   []string
}

type RunOutput struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Uploaded   int
	Downloaded int
	Imported   int
	Merged     int
	Message    string
	Outcomes   []OutcomeOutput
	Failures   []FailureOutput
}

type ExportOutput struct {
	ProjectID string
	FileName  string
	Content   []byte
}

type ImportDocumentInput struct {
	Content []byte
}

type ImportDocumentOutput struct {
	ProjectID string
	Action    string
	Warnings  []string
}
