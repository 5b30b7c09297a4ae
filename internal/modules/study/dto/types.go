package dto

import "time"

type ProjectOutput struct {
	ID            string
	SourceID      string
	SyncKey       string
	Name          string
	Status        string
	TotalSegments int
	Learned       int
	UpdatedAt     time.Time
}

type SpeakerOutput struct {
	ID         string
	Label      string
	Name       string
	Confidence float64
	IsManual   bool
}

type KeywordOutput struct {
	Word             string
	MeaningPrimary   string
	MeaningSecondary string
}

type SegmentOutput struct {
	Index        int
	Text         string
	StartTime    float64
	EndTime      float64
	Translation  string
	SpeakerLabel string
	Learned      bool
	LearnCount   int
	IsDifficult  bool
	ReviewCount  int
	LastReviewed *time.Time
	Keywords     []KeywordOutput
}

type ProjectDetailOutput struct {
	Project  ProjectOutput
	Speakers []SpeakerOutput
	Segments []SegmentOutput
}

type RecordReviewInput struct {
	ProjectID string
	Index     int
	Learned   bool
	// Difficult leaves the flag unchanged when nil.
	Difficult *bool
}

type RenameSpeakerInput struct {
	ProjectID string
	Label     string
	Name      string
}
