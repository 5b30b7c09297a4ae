package service

import (
	"context"
	"fmt"

	studyout "studysync/internal/modules/study/port/out"
	"studysync/internal/modules/sync/domain"
	"studysync/internal/platform/clock"
	"studysync/internal/platform/tx"
)

type Exporter struct {
	clock clock.Clock
	store studyout.Store
	tx    tx.Manager
}

func NewExporter(clock clock.Clock, store studyout.Store, txManager tx.Manager) *Exporter {
	return &Exporter{clock: clock, store: store, tx: txManager}
}

// Export reads one project as a snapshot inside a single transaction. The
// snapshot carries local entity ids and is published under the project's
// sync key.
func (e *Exporter) Export(ctx context.Context, projectID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := e.tx.Within(ctx, func(ctx context.Context) error {
		project, err := e.store.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		speakers, err := e.store.ListSpeakers(ctx, projectID)
		if err != nil {
			return err
		}
		segments, err := e.store.ListSegments(ctx, projectID)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(segments))
		for _, seg := range segments {
			ids = append(ids, seg.ID)
		}
		keywords, err := e.store.ListKeywordsBySegmentIDs(ctx, ids)
		if err != nil {
			return err
		}

		snap = domain.Snapshot{
			Version:    domain.SnapshotVersion,
			ExportedAt: e.clock.Now(),
			Project: domain.ProjectHeader{
				ID:            project.SyncKey(),
				Name:          project.Name,
				TotalSegments: project.TotalSegments,
			},
			Speakers: make([]domain.Speaker, 0, len(speakers)),
			Segments: make([]domain.Segment, 0, len(segments)),
		}
		labels := make(map[string]string, len(speakers))
		for _, sp := range speakers {
			labels[sp.ID] = sp.Label
			snap.Speakers = append(snap.Speakers, domain.Speaker{
				ID:            sp.ID,
				Label:         sp.Label,
				DisplayName:   sp.DisplayName,
				Confidence:    sp.Confidence,
				Evidence:      sp.Evidence,
				IsManual:      sp.IsManual,
				NameUpdatedAt: sp.NameUpdatedAt,
			})
		}
		for _, seg := range segments {
			out := domain.Segment{
				ID:                   seg.ID,
				Index:                seg.Index,
				Text:                 seg.Text,
				StartTime:            seg.StartTime,
				EndTime:              seg.EndTime,
				Translation:          seg.Translation,
				ExplanationPrimary:   seg.ExplanationPrimary,
				ExplanationSecondary: seg.ExplanationSecondary,
				SpeakerID:            seg.SpeakerID,
				SpeakerLabel:         labels[seg.SpeakerID],
				Progress:             seg.Progress,
			}
			for _, kw := range keywords[seg.ID] {
				out.Keywords = append(out.Keywords, domain.Keyword{Word: kw.Word, MeaningPrimary: kw.MeaningPrimary, MeaningSecondary: kw.MeaningSecondary})
			}
			snap.Segments = append(snap.Segments, out)
		}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("export project %s: %w", projectID, err)
	}
	return snap, nil
}
