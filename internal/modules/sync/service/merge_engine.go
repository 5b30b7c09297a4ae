package service

import (
	"context"
	"fmt"
	"log/slog"

	studyout "studysync/internal/modules/study/port/out"
	"studysync/internal/modules/sync/domain"
	"studysync/internal/platform/tx"
)

type MergeReport struct {
	ProjectID       string
	SegmentsUpdated int
	SpeakersUpdated int
	// Unmatched counts remote segments whose index has no local segment.
	// They are never inserted.
	Unmatched int
	Warnings  []domain.Warning
}

// MergeEngine folds a remote snapshot into an existing local project,
// touching only progress fields and speaker names.
type MergeEngine struct {
	exporter *Exporter
	store    studyout.Store
	tx       tx.Manager
	logger   *slog.Logger
}

func NewMergeEngine(exporter *Exporter, store studyout.Store, txManager tx.Manager, logger *slog.Logger) *MergeEngine {
	return &MergeEngine{exporter: exporter, store: store, tx: txManager, logger: logger}
}

// MergeAndApply reads the local snapshot, merges remote into it and writes
// back the rows that changed, all in one transaction.
func (m *MergeEngine) MergeAndApply(ctx context.Context, projectID string, remote domain.Snapshot) (MergeReport, error) {
	report := MergeReport{ProjectID: projectID}
	err := m.tx.Within(ctx, func(ctx context.Context) error {
		local, err := m.exporter.Export(ctx, projectID)
		if err != nil {
			return err
		}
		merged, warnings := domain.MergeDetailed(local, remote)
		report.Warnings = warnings

		localSegs := local.SegmentByIndex()
		for _, seg := range merged.Segments {
			before, ok := localSegs[seg.Index]
			if !ok {
				report.Unmatched++
				continue
			}
			if before.Progress.Equal(seg.Progress) {
				continue
			}
			if err := m.store.UpdateSegmentProgress(ctx, before.ID, seg.Progress); err != nil {
				return fmt.Errorf("segment %d: %w", seg.Index, err)
			}
			report.SegmentsUpdated++
		}

		localSpeakers := local.SpeakerByLabel()
		for _, sp := range merged.Speakers {
			before, ok := localSpeakers[sp.Label]
			if !ok {
				report.Warnings = append(report.Warnings, domain.Warning{Record: "speaker " + sp.Label, Reason: "no local speaker with this label"})
				continue
			}
			if before.DisplayName == sp.DisplayName && before.IsManual == sp.IsManual && before.NameUpdatedAt.Equal(sp.NameUpdatedAt) {
				continue
			}
			if err := m.store.UpdateSpeakerName(ctx, before.ID, sp.DisplayName, sp.IsManual, sp.NameUpdatedAt); err != nil {
				return fmt.Errorf("speaker %s: %w", sp.Label, err)
			}
			report.SpeakersUpdated++
		}
		return nil
	})
	if err != nil {
		return MergeReport{}, fmt.Errorf("merge into %s: %w", projectID, err)
	}
	m.logger.Info("project merged",
		slog.String("project", projectID),
		slog.Int("segments_updated", report.SegmentsUpdated),
		slog.Int("speakers_updated", report.SpeakersUpdated),
		slog.Int("unmatched", report.Unmatched),
	)
	return report, nil
}
