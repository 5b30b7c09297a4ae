package domain

import (
	"time"

	studydomain "studysync/internal/modules/study/domain"
)

const (
	SnapshotVersion  = "2.0"
	SnapshotFileName = "project.json"
	AudioFileName    = "audio.mp3"
)

// Snapshot is the transport-agnostic value of one project's content and
// progress. Values are never mutated after construction; every operation
// returns a new Snapshot.
type Snapshot struct {
	Version    string
	ExportedAt time.Time
	Project    ProjectHeader
	Speakers   []Speaker
	// Segments are ordered by Index with no duplicate index.
	Segments []Segment
}

type ProjectHeader struct {
	// ID is the sync key the project is published under.
	ID            string
	Name          string
	TotalSegments int
}

type Speaker struct {
	ID            string
	Label         string
	DisplayName   string
	Confidence    float64
	Evidence      string
	IsManual      bool
	NameUpdatedAt time.Time
}

type Segment struct {
	ID                   string
	Index                int
	Text                 string
	StartTime            float64
	EndTime              float64
	Translation          string
	ExplanationPrimary   string
	ExplanationSecondary string
	SpeakerID            string
	SpeakerLabel         string
	Progress             studydomain.Progress
	Keywords             []Keyword
}

type Keyword struct {
	Word             string
	MeaningPrimary   string
	MeaningSecondary string
}

// SegmentByIndex returns the segments keyed by position index.
func (s Snapshot) SegmentByIndex() map[int]Segment {
	out := make(map[int]Segment, len(s.Segments))
	for _, seg := range s.Segments {
		out[seg.Index] = seg
	}
	return out
}

func (s Snapshot) SpeakerByLabel() map[string]Speaker {
	out := make(map[string]Speaker, len(s.Speakers))
	for _, sp := range s.Speakers {
		out[sp.Label] = sp
	}
	return out
}

// Warning describes one record that was skipped or repaired.
type Warning struct {
	Record string
	Reason string
}

func (w Warning) String() string {
	return w.Record + ": " + w.Reason
}
