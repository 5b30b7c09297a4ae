package domain

import (
	"fmt"
	"strings"
	"time"
)

const StatusReady = "ready"

type Project struct {
	ID string
	// SourceID is the identity under which the project was first received
	// from the remote side. Empty for projects created on this device.
	SourceID      string
	Name          string
	Status        string
	TotalSegments int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SyncKey is the identity the project is published under remotely.
func (p Project) SyncKey() string {
	if p.SourceID != "" {
		return p.SourceID
	}
	return p.ID
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("project id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	if p.TotalSegments < 0 {
		return fmt.Errorf("total segments must be >= 0")
	}
	return nil
}

// Progress holds the mutable study state of a segment.
type Progress struct {
	Learned      bool
	LearnCount   int
	IsDifficult  bool
	ReviewCount  int
	LastReviewed *time.Time
}

func (p Progress) Equal(other Progress) bool {
	if p.Learned != other.Learned || p.LearnCount != other.LearnCount ||
		p.IsDifficult != other.IsDifficult || p.ReviewCount != other.ReviewCount {
		return false
	}
	switch {
	case p.LastReviewed == nil && other.LastReviewed == nil:
		return true
	case p.LastReviewed == nil || other.LastReviewed == nil:
		return false
	default:
		return p.LastReviewed.Equal(*other.LastReviewed)
	}
}

type Segment struct {
	ID                   string
	ProjectID            string
	Index                int
	Text                 string
	StartTime            float64
	EndTime              float64
	Translation          string
	ExplanationPrimary   string
	ExplanationSecondary string
	SpeakerID            string
	Progress             Progress
}

func (s Segment) Validate() error {
	if s.ID == "" || s.ProjectID == "" {
		return fmt.Errorf("segment id and project id are required")
	}
	if s.Index < 0 {
		return fmt.Errorf("segment index must be >= 0")
	}
	if s.Progress.LearnCount < 0 || s.Progress.ReviewCount < 0 {
		return fmt.Errorf("segment %d: progress counters must be >= 0", s.Index)
	}
	return nil
}

type Speaker struct {
	ID          string
	ProjectID   string
	Label       string
	DisplayName string
	Confidence  float64
	Evidence    string
	IsManual    bool
	// NameUpdatedAt is when DisplayName was last computed or edited. Zero
	// when unknown.
	NameUpdatedAt time.Time
}

// EffectiveName is the name shown to the user.
func (s Speaker) EffectiveName() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return "Speaker " + s.Label
}

type Keyword struct {
	ID               string
	SegmentID        string
	Word             string
	MeaningPrimary   string
	MeaningSecondary string
}

// Tree is a fully staged project ready to be written in one unit.
type Tree struct {
	Project  Project
	Speakers []Speaker
	Segments []Segment
	Keywords []Keyword
}

// Validate checks referential integrity inside the staged tree.
func (t Tree) Validate() error {
	if err := t.Project.Validate(); err != nil {
		return err
	}
	speakers := make(map[string]struct{}, len(t.Speakers))
	for _, sp := range t.Speakers {
		if sp.ProjectID != t.Project.ID {
			return fmt.Errorf("speaker %s belongs to another project", sp.ID)
		}
		speakers[sp.ID] = struct{}{}
	}
	segments := make(map[string]struct{}, len(t.Segments))
	indices := make(map[int]struct{}, len(t.Segments))
	for _, seg := range t.Segments {
		if err := seg.Validate(); err != nil {
			return err
		}
		if seg.ProjectID != t.Project.ID {
			return fmt.Errorf("segment %s belongs to another project", seg.ID)
		}
		if _, dup := indices[seg.Index]; dup {
			return fmt.Errorf("duplicate segment index %d", seg.Index)
		}
		indices[seg.Index] = struct{}{}
		if seg.SpeakerID != "" {
			if _, ok := speakers[seg.SpeakerID]; !ok {
				return fmt.Errorf("segment %d references unknown speaker", seg.Index)
			}
		}
		segments[seg.ID] = struct{}{}
	}
	for _, kw := range t.Keywords {
		if _, ok := segments[kw.SegmentID]; !ok {
			return fmt.Errorf("keyword %q references unknown segment", kw.Word)
		}
	}
	return nil
}

// RecordReview applies one study pass to a segment's progress.
func (p Progress) RecordReview(at time.Time, learned bool, difficult *bool) Progress {
	next := p
	next.ReviewCount++
	if learned {
		next.Learned = true
		next.LearnCount++
	}
	if difficult != nil {
		next.IsDifficult = *difficult
	}
	t := at.UTC()
	next.LastReviewed = &t
	return next
}
