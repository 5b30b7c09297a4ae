package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	studydomain "studysync/internal/modules/study/domain"
	studyout "studysync/internal/modules/study/port/out"
	"studysync/internal/modules/sync/domain"
	"studysync/internal/platform/clock"
	apperrors "studysync/internal/platform/errors"
	"studysync/internal/platform/id"
	"studysync/internal/platform/tx"
)

// Importer creates a new local project from a remote snapshot.
type Importer struct {
	clock  clock.Clock
	ids    id.Generator
	store  studyout.Store
	tx     tx.Manager
	logger *slog.Logger
}

func NewImporter(clock clock.Clock, ids id.Generator, store studyout.Store, txManager tx.Manager, logger *slog.Logger) *Importer {
	return &Importer{clock: clock, ids: ids, store: store, tx: txManager, logger: logger}
}

// Import stages the whole project tree under fresh local ids and commits it
// in one write. The source id is recorded on the project so later runs
// resolve to it. Fails with ErrIdentityConflict if a project already claims
// sourceID.
func (i *Importer) Import(ctx context.Context, sourceID string, snap domain.Snapshot) (string, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return "", fmt.Errorf("%w: source id is required", apperrors.ErrInvalidInput)
	}
	tree := i.stage(sourceID, snap)
	if err := tree.Validate(); err != nil {
		return "", fmt.Errorf("import %s: %w: %v", sourceID, apperrors.ErrMalformedSnapshot, err)
	}
	err := i.tx.Within(ctx, func(ctx context.Context) error {
		existing, err := i.store.FindProjectsBySyncKey(ctx, sourceID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: %s already imported as %s", apperrors.ErrIdentityConflict, sourceID, existing[0].ID)
		}
		return i.store.InsertProjectTree(ctx, tree)
	})
	if err != nil {
		return "", fmt.Errorf("import %s: %w", sourceID, err)
	}
	i.logger.Info("project imported",
		slog.String("source_id", sourceID),
		slog.String("project", tree.Project.ID),
		slog.Int("segments", len(tree.Segments)),
		slog.Int("speakers", len(tree.Speakers)),
	)
	return tree.Project.ID, nil
}

func (i *Importer) stage(sourceID string, snap domain.Snapshot) studydomain.Tree {
	now := i.clock.Now()
	projectID := i.ids.New()
	tree := studydomain.Tree{
		Project: studydomain.Project{
			ID:            projectID,
			SourceID:      sourceID,
			Name:          snap.Project.Name,
			Status:        studydomain.StatusReady,
			TotalSegments: len(snap.Segments),
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}

	speakerByRemoteID := make(map[string]string, len(snap.Speakers))
	speakerByLabel := make(map[string]string, len(snap.Speakers))
	for _, sp := range snap.Speakers {
		if _, dup := speakerByLabel[sp.Label]; dup {
			continue
		}
		localID := i.ids.New()
		if sp.ID != "" {
			speakerByRemoteID[sp.ID] = localID
		}
		speakerByLabel[sp.Label] = localID
		tree.Speakers = append(tree.Speakers, studydomain.Speaker{
			ID:            localID,
			ProjectID:     projectID,
			Label:         sp.Label,
			DisplayName:   sp.DisplayName,
			Confidence:    sp.Confidence,
			Evidence:      sp.Evidence,
			IsManual:      sp.IsManual,
			NameUpdatedAt: sp.NameUpdatedAt,
		})
	}

	for _, seg := range snap.Segments {
		segmentID := i.ids.New()
		speakerID, ok := speakerByRemoteID[seg.SpeakerID]
		if !ok && seg.SpeakerLabel != "" {
			speakerID = speakerByLabel[seg.SpeakerLabel]
		}
		tree.Segments = append(tree.Segments, studydomain.Segment{
			ID:                   segmentID,
			ProjectID:            projectID,
			Index:                seg.Index,
			Text:                 seg.Text,
			StartTime:            seg.StartTime,
			EndTime:              seg.EndTime,
			Translation:          seg.Translation,
			ExplanationPrimary:   seg.ExplanationPrimary,
			ExplanationSecondary: seg.ExplanationSecondary,
			SpeakerID:            speakerID,
			Progress:             seg.Progress,
		})
		for _, kw := range seg.Keywords {
			tree.Keywords = append(tree.Keywords, studydomain.Keyword{
				ID:               i.ids.New(),
				SegmentID:        segmentID,
				Word:             kw.Word,
				MeaningPrimary:   kw.MeaningPrimary,
				MeaningSecondary: kw.MeaningSecondary,
			})
		}
	}
	return tree
}
