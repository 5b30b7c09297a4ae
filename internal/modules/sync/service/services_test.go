package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	studydomain "studysync/internal/modules/study/domain"
	"studysync/internal/modules/sync/domain"
	apperrors "studysync/internal/platform/errors"
)

func remoteSnapshot(key string, segments int) domain.Snapshot {
	snap := domain.Snapshot{
		Version:    domain.SnapshotVersion,
		ExportedAt: testNow.Add(-time.Hour),
		Project:    domain.ProjectHeader{ID: key, Name: "Remote " + key, TotalSegments: segments},
		Speakers: []domain.Speaker{
			{ID: "remote-sp-1", Label: "A", DisplayName: "Anna", Confidence: 0.7},
			{ID: "remote-sp-2", Label: "B", DisplayName: "Bram"},
		},
	}
	for i := 0; i < segments; i++ {
		speaker, label := "remote-sp-1", "A"
		if i%2 == 1 {
			speaker, label = "remote-sp-2", "B"
		}
		snap.Segments = append(snap.Segments, domain.Segment{
			ID: fmt.Sprintf("remote-seg-%d", i), Index: i, Text: fmt.Sprintf("remote %d", i),
			StartTime: float64(i), EndTime: float64(i) + 1, Translation: "t", ExplanationPrimary: "e1", ExplanationSecondary: "e2",
			SpeakerID: speaker, SpeakerLabel: label,
			Keywords: []domain.Keyword{{Word: fmt.Sprintf("w%d", i), MeaningPrimary: "m1", MeaningSecondary: "m2"}},
		})
	}
	return snap
}

func TestImportThenExportKeepsContentPerIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDevice(t, "dev", newMemTransport())
	remote := remoteSnapshot("abc", 4)

	projectID, err := d.importer.Import(ctx, "abc", remote)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	exported, err := d.exporter.Export(ctx, projectID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.Project.ID != "abc" {
		t.Fatalf("export must publish under the source id, got %s", exported.Project.ID)
	}
	if len(exported.Segments) != len(remote.Segments) {
		t.Fatalf("segment count %d want %d", len(exported.Segments), len(remote.Segments))
	}
	for i, want := range remote.Segments {
		got := exported.Segments[i]
		if got.ID == want.ID {
			t.Fatalf("segment %d kept its remote id", i)
		}
		if got.Index != want.Index || got.Text != want.Text || got.StartTime != want.StartTime || got.EndTime != want.EndTime ||
			got.Translation != want.Translation || got.ExplanationPrimary != want.ExplanationPrimary ||
			got.ExplanationSecondary != want.ExplanationSecondary || got.SpeakerLabel != want.SpeakerLabel {
			t.Fatalf("segment %d content differs:\n got %+v\nwant %+v", i, got, want)
		}
		if len(got.Keywords) != 1 || got.Keywords[0] != want.Keywords[0] {
			t.Fatalf("segment %d keywords %+v want %+v", i, got.Keywords, want.Keywords)
		}
	}
}

func TestImportFallsBackToSpeakerLabel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDevice(t, "dev", newMemTransport())
	remote := remoteSnapshot("lbl", 2)
	remote.Segments[1].SpeakerID = "gone"
	remote.Segments[0].SpeakerID = ""
	remote.Segments[0].SpeakerLabel = "Z"

	projectID, err := d.importer.Import(ctx, "lbl", remote)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	segments, err := d.store.ListSegments(ctx, projectID)
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	speakers, err := d.store.ListSpeakers(ctx, projectID)
	if err != nil {
		t.Fatalf("list speakers: %v", err)
	}
	byID := map[string]string{}
	for _, sp := range speakers {
		byID[sp.ID] = sp.Label
	}
	if segments[0].SpeakerID != "" {
		t.Fatalf("unknown label must leave segment without speaker, got %s", segments[0].SpeakerID)
	}
	if byID[segments[1].SpeakerID] != "B" {
		t.Fatalf("label fallback failed: %+v", segments[1])
	}
}

func TestReconcileDeduplicatesBySourceID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDevice(t, "dev", newMemTransport())
	remote := remoteSnapshot("dup", 3)

	first, err := d.reconciler.Reconcile(ctx, remote)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	second, err := d.reconciler.Reconcile(ctx, remote)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if first.Action != domain.ActionImported || second.Action != domain.ActionMerged || first.ProjectID != second.ProjectID {
		t.Fatalf("expected import then merge into the same project, got %+v then %+v", first, second)
	}
	projects, err := d.store.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected one project, got %d", len(projects))
	}
	if _, err := d.importer.Import(ctx, "dup", remote); !errors.Is(err, apperrors.ErrIdentityConflict) {
		t.Fatalf("direct re-import must conflict, got %v", err)
	}
}

func TestResolverReportsUnknownAndBlankKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDevice(t, "dev", newMemTransport())
	if _, found, err := d.resolver.Resolve(ctx, "nobody"); err != nil || found {
		t.Fatalf("resolve unknown = %v, %v", found, err)
	}
	if _, _, err := d.resolver.Resolve(ctx, " "); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("blank key must be invalid, got %v", err)
	}
}

func TestExportMissingProject(t *testing.T) {
	t.Parallel()
	d := newDevice(t, "dev", newMemTransport())
	if _, err := d.exporter.Export(context.Background(), "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMergeAndApplyTouchesOnlyProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDevice(t, "dev", newMemTransport())
	tree := localTree("p1", 5)
	tree.Segments[3].Progress = studydomain.Progress{Learned: false, LearnCount: 2}
	if err := d.store.InsertProjectTree(ctx, tree); err != nil {
		t.Fatalf("insert: %v", err)
	}

	remote := remoteSnapshot("p1", 7)
	remote.Segments[3].Progress = studydomain.Progress{Learned: true, LearnCount: 1}
	remote.Speakers[1].DisplayName = "Bram"
	remote.Speakers[1].IsManual = true

	report, err := d.merger.MergeAndApply(ctx, "p1", remote)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if report.SegmentsUpdated != 1 || report.SpeakersUpdated != 1 || report.Unmatched != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	segments, err := d.store.ListSegments(ctx, "p1")
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	if len(segments) != 5 {
		t.Fatalf("remote-only segments must not be inserted, got %d", len(segments))
	}
	got := segments[3]
	if !got.Progress.Learned || got.Progress.LearnCount != 2 {
		t.Fatalf("index 3 progress = %+v", got.Progress)
	}
	if got.Text != "zin 3" || got.Translation != "sentence 3" {
		t.Fatalf("local content overwritten: %+v", got)
	}
	speakers, err := d.store.ListSpeakers(ctx, "p1")
	if err != nil {
		t.Fatalf("list speakers: %v", err)
	}
	for _, sp := range speakers {
		if sp.Label == "B" && (sp.DisplayName != "Bram" || !sp.IsManual) {
			t.Fatalf("manual remote name not applied: %+v", sp)
		}
		if sp.Label == "A" && sp.DisplayName != "Anna" {
			t.Fatalf("speaker A changed: %+v", sp)
		}
	}

	again, err := d.merger.MergeAndApply(ctx, "p1", remote)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if again.SegmentsUpdated != 0 || again.SpeakersUpdated != 0 {
		t.Fatalf("second merge must be a no-op, got %+v", again)
	}
}

func TestResolverReportsKeyClaimedTwice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newDevice(t, "dev", newMemTransport())
	own := localTree("X", 1)
	linked := localTree("Y", 1)
	linked.Project.SourceID = "X"
	for _, tree := range []studydomain.Tree{own, linked} {
		if err := d.store.InsertProjectTree(ctx, tree); err != nil {
			t.Fatalf("insert %s: %v", tree.Project.ID, err)
		}
	}

	_, found, err := d.resolver.Resolve(ctx, "X")
	if !errors.Is(err, apperrors.ErrIdentityConflict) || found {
		t.Fatalf("expected identity conflict, got found=%v err=%v", found, err)
	}
	for _, id := range []string{"X", "Y"} {
		if !strings.Contains(err.Error(), id) {
			t.Fatalf("conflict %q does not name %s", err, id)
		}
	}
}
