package usecase_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	studyout "studysync/internal/modules/study/adapter/out"
	"studysync/internal/modules/study/domain"
	"studysync/internal/modules/study/service"
	"studysync/internal/modules/study/usecase"
	"studysync/internal/platform/clock"
	apperrors "studysync/internal/platform/errors"
	"studysync/internal/platform/logging"
)

func TestReviewRenameAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := studyout.NewSQLiteStore(filepath.Join(t.TempDir(), "study.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	now := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)
	tree := domain.Tree{
		Project: domain.Project{ID: "p1", Name: "Bij de bakker", Status: domain.StatusReady, TotalSegments: 2, CreatedAt: now, UpdatedAt: now},
		Speakers: []domain.Speaker{
			{ID: "sp-a", ProjectID: "p1", Label: "A"},
			{ID: "sp-b", ProjectID: "p1", Label: "B", DisplayName: "Bakker"},
		},
		Segments: []domain.Segment{
			{ID: "s0", ProjectID: "p1", Index: 0, Text: "Goedemorgen", SpeakerID: "sp-a"},
			{ID: "s1", ProjectID: "p1", Index: 1, Text: "Twee broden graag", SpeakerID: "sp-b"},
		},
		Keywords: []domain.Keyword{{ID: "k1", SegmentID: "s1", Word: "brood", MeaningSecondary: "bread"}},
	}
	if err := store.InsertProjectTree(ctx, tree); err != nil {
		t.Fatalf("insert tree: %v", err)
	}

	uc := usecase.NewInteractor(service.NewStudyService(clock.Fixed(now), store, store, logging.Discard()))

	difficult := true
	seg, err := uc.RecordReview(ctx, studyReview("p1", 1, true, &difficult))
	if err != nil {
		t.Fatalf("record review: %v", err)
	}
	if !seg.Learned || seg.LearnCount != 1 || seg.ReviewCount != 1 || !seg.IsDifficult {
		t.Fatalf("unexpected progress after review: %+v", seg)
	}
	if seg.LastReviewed == nil || !seg.LastReviewed.Equal(now) {
		t.Fatalf("last reviewed not set: %v", seg.LastReviewed)
	}

	speaker, err := uc.RenameSpeaker(ctx, studyRename("p1", "A", "Klant"))
	if err != nil {
		t.Fatalf("rename speaker: %v", err)
	}
	if speaker.Name != "Klant" || !speaker.IsManual {
		t.Fatalf("rename not pinned: %+v", speaker)
	}

	detail, err := uc.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if detail.Project.Learned != 1 || len(detail.Segments) != 2 {
		t.Fatalf("unexpected detail: %+v", detail.Project)
	}
	if detail.Segments[1].SpeakerLabel != "B" || len(detail.Segments[1].Keywords) != 1 {
		t.Fatalf("segment detail incomplete: %+v", detail.Segments[1])
	}
	if detail.Speakers[0].Name != "Klant" {
		t.Fatalf("renamed speaker missing: %+v", detail.Speakers)
	}

	list, err := uc.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].SyncKey != "p1" || list[0].Learned != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}

	if _, err := uc.RecordReview(ctx, studyReview("p1", 7, false, nil)); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for missing index, got %v", err)
	}
	if _, err := uc.RenameSpeaker(ctx, studyRename("p1", "A", "  ")); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank name, got %v", err)
	}

	if err := uc.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := uc.GetProject(ctx, "p1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
