package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	studydomain "studysync/internal/modules/study/domain"
	apperrors "studysync/internal/platform/errors"
)

const defaultProjectName = "Imported Project"

// Outgoing document. Field names are the published wire format.

type snapshotOut struct {
	Version    string       `json:"version"`
	ExportedAt string       `json:"exported_at"`
	Project    projectOut   `json:"project"`
	Speakers   []speakerOut `json:"speakers"`
	Segments   []segmentOut `json:"segments"`
}

type projectOut struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	TotalSegments int    `json:"total_segments"`
}

type speakerOut struct {
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	DisplayName   *string `json:"display_name"`
	Confidence    float64 `json:"confidence"`
	Evidence      *string `json:"evidence"`
	IsManual      bool    `json:"is_manual"`
	NameUpdatedAt *string `json:"name_updated_at,omitempty"`
}

type segmentOut struct {
	ID                   string       `json:"id"`
	Index                int          `json:"index"`
	Text                 string       `json:"text"`
	StartTime            float64      `json:"start_time"`
	EndTime              float64      `json:"end_time"`
	Translation          *string      `json:"translation"`
	ExplanationPrimary   *string      `json:"explanation_primary"`
	ExplanationSecondary *string      `json:"explanation_secondary"`
	Learned              bool         `json:"learned"`
	LearnCount           int          `json:"learn_count"`
	SpeakerID            *string      `json:"speaker_id"`
	SpeakerLabel         string       `json:"speaker_label,omitempty"`
	IsDifficult          bool         `json:"is_difficult"`
	ReviewCount          int          `json:"review_count"`
	LastReviewed         *string      `json:"last_reviewed"`
	Keywords             []keywordOut `json:"keywords"`
}

type keywordOut struct {
	Word             string `json:"word"`
	MeaningPrimary   string `json:"meaning_primary"`
	MeaningSecondary string `json:"meaning_secondary"`
}

// Incoming document. Records stay raw so that one mistyped record can be
// skipped without rejecting the document. Older field names are accepted
// next to the current ones.

type snapshotIn struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Project    *projectIn        `json:"project"`
	Speakers   []json.RawMessage `json:"speakers"`
	Segments   []json.RawMessage `json:"segments"`
	Sentences  []json.RawMessage `json:"sentences"`
	Keywords   []json.RawMessage `json:"keywords"`
	ID         string            `json:"id"`
	Name       string            `json:"name"`
}

type projectIn struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	TotalSegments  *int   `json:"total_segments"`
	TotalSentences *int   `json:"total_sentences"`
}

type speakerIn struct {
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	DisplayName   string  `json:"display_name"`
	Confidence    float64 `json:"confidence"`
	Evidence      string  `json:"evidence"`
	IsManual      bool    `json:"is_manual"`
	NameUpdatedAt string  `json:"name_updated_at"`
}

type segmentIn struct {
	ID                   string            `json:"id"`
	Index                *int              `json:"index"`
	Idx                  *int              `json:"idx"`
	Text                 *string           `json:"text"`
	StartTime            float64           `json:"start_time"`
	EndTime              float64           `json:"end_time"`
	Translation          string            `json:"translation"`
	TranslationEN        string            `json:"translation_en"`
	ExplanationPrimary   string            `json:"explanation_primary"`
	ExplanationNL        string            `json:"explanation_nl"`
	ExplanationSecondary string            `json:"explanation_secondary"`
	ExplanationEN        string            `json:"explanation_en"`
	Learned              bool              `json:"learned"`
	LearnCount           int               `json:"learn_count"`
	SpeakerID            string            `json:"speaker_id"`
	SpeakerLabel         string            `json:"speaker_label"`
	IsDifficult          bool              `json:"is_difficult"`
	ReviewCount          int               `json:"review_count"`
	LastReviewed         string            `json:"last_reviewed"`
	Keywords             []json.RawMessage `json:"keywords"`
}

type keywordIn struct {
	Word             *string `json:"word"`
	MeaningPrimary   string  `json:"meaning_primary"`
	MeaningNL        string  `json:"meaning_nl"`
	MeaningSecondary string  `json:"meaning_secondary"`
	MeaningEN        string  `json:"meaning_en"`
	SegmentID        string  `json:"segment_id"`
	SentenceID       string  `json:"sentence_id"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Encode renders a snapshot in the current wire format.
func Encode(s Snapshot) ([]byte, error) {
	out := snapshotOut{
		Version:    s.Version,
		ExportedAt: s.ExportedAt.UTC().Format(time.RFC3339Nano),
		Project:    projectOut{ID: s.Project.ID, Name: s.Project.Name, TotalSegments: s.Project.TotalSegments},
		Speakers:   make([]speakerOut, 0, len(s.Speakers)),
		Segments:   make([]segmentOut, 0, len(s.Segments)),
	}
	if out.Version == "" {
		out.Version = SnapshotVersion
	}
	for _, sp := range s.Speakers {
		so := speakerOut{
			ID:          sp.ID,
			Label:       sp.Label,
			DisplayName: optional(sp.DisplayName),
			Confidence:  sp.Confidence,
			Evidence:    optional(sp.Evidence),
			IsManual:    sp.IsManual,
		}
		if !sp.NameUpdatedAt.IsZero() {
			so.NameUpdatedAt = optional(sp.NameUpdatedAt.UTC().Format(time.RFC3339Nano))
		}
		out.Speakers = append(out.Speakers, so)
	}
	for _, seg := range s.Segments {
		so := segmentOut{
			ID:                   seg.ID,
			Index:                seg.Index,
			Text:                 seg.Text,
			StartTime:            seg.StartTime,
			EndTime:              seg.EndTime,
			Translation:          optional(seg.Translation),
			ExplanationPrimary:   optional(seg.ExplanationPrimary),
			ExplanationSecondary: optional(seg.ExplanationSecondary),
			Learned:              seg.Progress.Learned,
			LearnCount:           seg.Progress.LearnCount,
			SpeakerID:            optional(seg.SpeakerID),
			SpeakerLabel:         seg.SpeakerLabel,
			IsDifficult:          seg.Progress.IsDifficult,
			ReviewCount:          seg.Progress.ReviewCount,
			Keywords:             make([]keywordOut, 0, len(seg.Keywords)),
		}
		if seg.Progress.LastReviewed != nil {
			so.LastReviewed = optional(seg.Progress.LastReviewed.UTC().Format(time.RFC3339Nano))
		}
		for _, kw := range seg.Keywords {
			so.Keywords = append(so.Keywords, keywordOut(kw))
		}
		out.Segments = append(out.Segments, so)
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, nil
}

// Decode parses a snapshot document. Records that are missing required
// fields or are mistyped are skipped and reported as warnings. Keywords are
// normalized to the nested form: flat top-level entries are attached to the
// segment they reference unless that segment already carries nested
// keywords.
//
// A document that is not JSON or has no project id fails with
// ErrMalformedSnapshot.
func Decode(data []byte) (Snapshot, []Warning, error) {
	var doc snapshotIn
	if err := json.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedSnapshot, err)
	}
	d := decoder{}

	header := ProjectHeader{ID: doc.ID, Name: doc.Name}
	if doc.Project != nil {
		header.ID = doc.Project.ID
		header.Name = doc.Project.Name
		switch {
		case doc.Project.TotalSegments != nil:
			header.TotalSegments = *doc.Project.TotalSegments
		case doc.Project.TotalSentences != nil:
			header.TotalSegments = *doc.Project.TotalSentences
		}
	}
	header.ID = strings.TrimSpace(header.ID)
	if header.ID == "" {
		return Snapshot{}, nil, fmt.Errorf("%w: project id is required", apperrors.ErrMalformedSnapshot)
	}
	if strings.TrimSpace(header.Name) == "" {
		header.Name = defaultProjectName
	}
	if header.TotalSegments < 0 {
		d.warn("project", "negative total_segments reset to 0")
		header.TotalSegments = 0
	}

	snap := Snapshot{Version: doc.Version, Project: header}
	if doc.ExportedAt != "" {
		t, err := parseTime(doc.ExportedAt)
		if err != nil {
			d.warn("exported_at", err.Error())
		} else {
			snap.ExportedAt = t
		}
	}

	snap.Speakers = d.speakers(doc.Speakers)
	labelsByID := make(map[string]string, len(snap.Speakers))
	for _, sp := range snap.Speakers {
		if sp.ID != "" {
			labelsByID[sp.ID] = sp.Label
		}
	}

	rawSegments := doc.Segments
	if len(rawSegments) == 0 {
		rawSegments = doc.Sentences
	}
	segments, nested := d.segments(rawSegments, labelsByID)
	d.attachFlatKeywords(doc.Keywords, segments, nested)

	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Index < segments[j].Index })
	snap.Segments = segments
	return snap, d.warnings, nil
}

type decoder struct {
	warnings []Warning
}

func (d *decoder) warn(record, reason string) {
	d.warnings = append(d.warnings, Warning{Record: record, Reason: reason})
}

func (d *decoder) speakers(raw []json.RawMessage) []Speaker {
	out := make([]Speaker, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, r := range raw {
		record := fmt.Sprintf("speaker[%d]", i)
		var in speakerIn
		if err := json.Unmarshal(r, &in); err != nil {
			d.warn(record, "malformed: "+err.Error())
			continue
		}
		label := strings.TrimSpace(in.Label)
		if label == "" {
			d.warn(record, "label is required")
			continue
		}
		if _, dup := seen[label]; dup {
			d.warn(record, "duplicate label "+label)
			continue
		}
		seen[label] = struct{}{}
		sp := Speaker{
			ID:          in.ID,
			Label:       label,
			DisplayName: in.DisplayName,
			Confidence:  in.Confidence,
			Evidence:    in.Evidence,
			IsManual:    in.IsManual,
		}
		if in.NameUpdatedAt != "" {
			t, err := parseTime(in.NameUpdatedAt)
			if err != nil {
				d.warn(record, "name_updated_at: "+err.Error())
			} else {
				sp.NameUpdatedAt = t
			}
		}
		out = append(out, sp)
	}
	return out
}

// segments decodes segment records. The returned set holds the ids of
// segments that carried nested keywords in the document.
func (d *decoder) segments(raw []json.RawMessage, labelsByID map[string]string) ([]Segment, map[string]struct{}) {
	out := make([]Segment, 0, len(raw))
	nested := map[string]struct{}{}
	seen := make(map[int]struct{}, len(raw))
	for i, r := range raw {
		record := fmt.Sprintf("segment[%d]", i)
		var in segmentIn
		if err := json.Unmarshal(r, &in); err != nil {
			d.warn(record, "malformed: "+err.Error())
			continue
		}
		index := in.Index
		if index == nil {
			index = in.Idx
		}
		if index == nil || *index < 0 {
			d.warn(record, "index is required and must be >= 0")
			continue
		}
		if in.Text == nil {
			d.warn(record, "text is required")
			continue
		}
		if _, dup := seen[*index]; dup {
			d.warn(record, fmt.Sprintf("duplicate index %d", *index))
			continue
		}
		seen[*index] = struct{}{}

		seg := Segment{
			ID:                   in.ID,
			Index:                *index,
			Text:                 *in.Text,
			StartTime:            in.StartTime,
			EndTime:              in.EndTime,
			Translation:          first(in.Translation, in.TranslationEN),
			ExplanationPrimary:   first(in.ExplanationPrimary, in.ExplanationNL),
			ExplanationSecondary: first(in.ExplanationSecondary, in.ExplanationEN),
			SpeakerID:            in.SpeakerID,
			SpeakerLabel:         strings.TrimSpace(in.SpeakerLabel),
			Progress: studydomain.Progress{
				Learned:     in.Learned,
				LearnCount:  in.LearnCount,
				IsDifficult: in.IsDifficult,
				ReviewCount: in.ReviewCount,
			},
		}
		if seg.SpeakerLabel == "" && seg.SpeakerID != "" {
			seg.SpeakerLabel = labelsByID[seg.SpeakerID]
		}
		if seg.Progress.LearnCount < 0 {
			d.warn(record, "negative learn_count reset to 0")
			seg.Progress.LearnCount = 0
		}
		if seg.Progress.ReviewCount < 0 {
			d.warn(record, "negative review_count reset to 0")
			seg.Progress.ReviewCount = 0
		}
		if in.LastReviewed != "" {
			t, err := parseTime(in.LastReviewed)
			if err != nil {
				d.warn(record, "last_reviewed: "+err.Error())
			} else {
				seg.Progress.LastReviewed = &t
			}
		}
		for j, kr := range in.Keywords {
			kw, ok := d.keyword(fmt.Sprintf("%s.keyword[%d]", record, j), kr)
			if ok {
				seg.Keywords = append(seg.Keywords, kw)
			}
		}
		if len(in.Keywords) > 0 && seg.ID != "" {
			nested[seg.ID] = struct{}{}
		}
		out = append(out, seg)
	}
	return out, nested
}

func (d *decoder) keyword(record string, raw json.RawMessage) (Keyword, bool) {
	var in keywordIn
	if err := json.Unmarshal(raw, &in); err != nil {
		d.warn(record, "malformed: "+err.Error())
		return Keyword{}, false
	}
	if in.Word == nil || strings.TrimSpace(*in.Word) == "" {
		d.warn(record, "word is required")
		return Keyword{}, false
	}
	return Keyword{
		Word:             *in.Word,
		MeaningPrimary:   first(in.MeaningPrimary, in.MeaningNL),
		MeaningSecondary: first(in.MeaningSecondary, in.MeaningEN),
	}, true
}

func (d *decoder) attachFlatKeywords(raw []json.RawMessage, segments []Segment, nested map[string]struct{}) {
	if len(raw) == 0 {
		return
	}
	positions := make(map[string]int, len(segments))
	for i, seg := range segments {
		if seg.ID != "" {
			positions[seg.ID] = i
		}
	}
	for i, r := range raw {
		record := fmt.Sprintf("keyword[%d]", i)
		var ref struct {
			SegmentID  string `json:"segment_id"`
			SentenceID string `json:"sentence_id"`
		}
		if err := json.Unmarshal(r, &ref); err != nil {
			d.warn(record, "malformed: "+err.Error())
			continue
		}
		segmentID := first(ref.SegmentID, ref.SentenceID)
		if segmentID == "" {
			d.warn(record, "segment_id is required")
			continue
		}
		pos, ok := positions[segmentID]
		if !ok {
			d.warn(record, "unknown segment "+segmentID)
			continue
		}
		if _, hasNested := nested[segmentID]; hasNested {
			continue
		}
		kw, ok := d.keyword(record, r)
		if !ok {
			continue
		}
		segments[pos].Keywords = append(segments[pos].Keywords, kw)
	}
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
