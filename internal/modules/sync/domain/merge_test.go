package domain_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	studydomain "studysync/internal/modules/study/domain"
	"studysync/internal/modules/sync/domain"
)

func randomProgress(r *rand.Rand) studydomain.Progress {
	p := studydomain.Progress{
		Learned:     r.Intn(2) == 0,
		LearnCount:  r.Intn(5),
		IsDifficult: r.Intn(3) == 0,
		ReviewCount: r.Intn(8),
	}
	if r.Intn(3) > 0 {
		t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(r.Intn(500)) * time.Hour)
		p.LastReviewed = &t
	}
	return p
}

func TestMergeProgressLaws(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		a, b, c := randomProgress(r), randomProgress(r), randomProgress(r)
		if got := domain.MergeProgress(a, a); !got.Equal(a) {
			t.Fatalf("not idempotent: merge(%+v, itself) = %+v", a, got)
		}
		if ab, ba := domain.MergeProgress(a, b), domain.MergeProgress(b, a); !ab.Equal(ba) {
			t.Fatalf("not commutative: %+v vs %+v", ab, ba)
		}
		left := domain.MergeProgress(domain.MergeProgress(a, b), c)
		right := domain.MergeProgress(a, domain.MergeProgress(b, c))
		if !left.Equal(right) {
			t.Fatalf("not associative: %+v vs %+v", left, right)
		}
		m := domain.MergeProgress(a, b)
		for _, in := range []studydomain.Progress{a, b} {
			if (in.Learned && !m.Learned) || (in.IsDifficult && !m.IsDifficult) ||
				m.LearnCount < in.LearnCount || m.ReviewCount < in.ReviewCount {
				t.Fatalf("progress lost: merge(%+v, %+v) = %+v", a, b, m)
			}
			if in.LastReviewed != nil && (m.LastReviewed == nil || m.LastReviewed.Before(*in.LastReviewed)) {
				t.Fatalf("last review went backwards: %+v", m)
			}
		}
	}
}

func TestMergeSnapshotWithItselfIsIdentity(t *testing.T) {
	t.Parallel()
	s := sampleSnapshot()
	if diff := cmp.Diff(s, domain.Merge(s, s), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("merge(s, s) changed s (-want +got):\n%s", diff)
	}
}

func TestMergePairsByIndex(t *testing.T) {
	t.Parallel()
	reviewed := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	local := domain.Snapshot{
		Project: domain.ProjectHeader{ID: "p", Name: "Lokaal", TotalSegments: 5},
		Segments: []domain.Segment{
			{ID: "l2", Index: 2, Text: "twee"},
			{ID: "l3", Index: 3, Text: "drie", Progress: studydomain.Progress{Learned: false, LearnCount: 1, ReviewCount: 2}},
		},
	}
	remote := domain.Snapshot{
		Project: domain.ProjectHeader{ID: "p", Name: "Remote", TotalSegments: 4},
		Segments: []domain.Segment{
			{ID: "r3", Index: 3, Text: "ander", Progress: studydomain.Progress{Learned: true, LearnCount: 3, IsDifficult: true, ReviewCount: 1, LastReviewed: &reviewed}},
			{ID: "r4", Index: 4, Text: "vier"},
		},
	}
	merged := domain.Merge(local, remote)
	if merged.Project.Name != "Lokaal" || merged.Project.TotalSegments != 5 {
		t.Fatalf("unexpected header %+v", merged.Project)
	}
	if len(merged.Segments) != 3 {
		t.Fatalf("expected index union of 3, got %+v", merged.Segments)
	}
	got := merged.Segments[1]
	want := studydomain.Progress{Learned: true, LearnCount: 3, IsDifficult: true, ReviewCount: 2, LastReviewed: &reviewed}
	if got.ID != "l3" || got.Text != "drie" {
		t.Fatalf("paired segment must keep local content: %+v", got)
	}
	if !got.Progress.Equal(want) {
		t.Fatalf("progress = %+v want %+v", got.Progress, want)
	}
	if merged.Segments[0].ID != "l2" || merged.Segments[2].ID != "r4" {
		t.Fatalf("unpaired segments must pass through: %+v", merged.Segments)
	}
}

func TestMergeSpeakerPrecedence(t *testing.T) {
	t.Parallel()
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)
	cases := []struct {
		name          string
		local, remote domain.Speaker
		want          string
		manual        bool
	}{
		{"manual beats newer", domain.Speaker{Label: "A", DisplayName: "Pinned", IsManual: true, NameUpdatedAt: early},
			domain.Speaker{Label: "A", DisplayName: "Guess", NameUpdatedAt: late}, "Pinned", true},
		{"remote manual wins", domain.Speaker{Label: "A", DisplayName: "Guess", NameUpdatedAt: late},
			domain.Speaker{Label: "A", DisplayName: "Pinned", IsManual: true, NameUpdatedAt: early}, "Pinned", true},
		{"newer wins", domain.Speaker{Label: "A", DisplayName: "Old", NameUpdatedAt: early},
			domain.Speaker{Label: "A", DisplayName: "New", NameUpdatedAt: late}, "New", false},
		{"non-empty wins tie", domain.Speaker{Label: "A"},
			domain.Speaker{Label: "A", DisplayName: "Anna"}, "Anna", false},
	}
	for _, tc := range cases {
		got := domain.MergeSpeaker(tc.local, tc.remote)
		if got.DisplayName != tc.want || got.IsManual != tc.manual {
			t.Fatalf("%s: got %q manual=%v", tc.name, got.DisplayName, got.IsManual)
		}
		flipped := domain.MergeSpeaker(tc.remote, tc.local)
		if flipped.DisplayName != got.DisplayName {
			t.Fatalf("%s: name depends on argument order (%q vs %q)", tc.name, got.DisplayName, flipped.DisplayName)
		}
	}
}

func TestMergeReportsBadIndices(t *testing.T) {
	t.Parallel()
	local := domain.Snapshot{Segments: []domain.Segment{{Index: -1}, {Index: 0, ID: "a"}, {Index: 0, ID: "b"}}}
	merged, warnings := domain.MergeDetailed(local, domain.Snapshot{})
	if len(merged.Segments) != 1 || merged.Segments[0].ID != "a" {
		t.Fatalf("unexpected segments %+v", merged.Segments)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
}

func TestMergeAppendsRemoteOnlySpeakers(t *testing.T) {
	t.Parallel()
	local := domain.Snapshot{Speakers: []domain.Speaker{{Label: "A", DisplayName: "Anna"}}}
	remote := domain.Snapshot{Speakers: []domain.Speaker{{Label: "B", DisplayName: "Bram"}, {Label: "A"}}}
	merged := domain.Merge(local, remote)
	if len(merged.Speakers) != 2 || merged.Speakers[0].Label != "A" || merged.Speakers[1].Label != "B" {
		t.Fatalf("unexpected speakers %+v", merged.Speakers)
	}
	if merged.Speakers[0].DisplayName != "Anna" {
		t.Fatalf("local name lost: %+v", merged.Speakers[0])
	}
}

func TestMergeSharesNothingWithInputs(t *testing.T) {
	t.Parallel()
	reviewed := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	local := domain.Snapshot{
		Project: domain.ProjectHeader{ID: "p"},
		Segments: []domain.Segment{
			{ID: "l0", Index: 0, Text: "nul", Keywords: []domain.Keyword{{Word: "nul"}}, Progress: studydomain.Progress{LastReviewed: &reviewed}},
			{ID: "l1", Index: 1, Text: "een", Keywords: []domain.Keyword{{Word: "een"}}},
		},
	}
	remote := domain.Snapshot{
		Project: domain.ProjectHeader{ID: "p"},
		Segments: []domain.Segment{
			{ID: "r0", Index: 0, Text: "zero", Keywords: []domain.Keyword{{Word: "zero"}}},
			{ID: "r2", Index: 2, Text: "twee", Keywords: []domain.Keyword{{Word: "twee"}}},
		},
	}

	merged := domain.Merge(local, remote)
	for i := range merged.Segments {
		merged.Segments[i].Keywords[0].Word = "changed"
		if lr := merged.Segments[i].Progress.LastReviewed; lr != nil {
			*lr = lr.Add(time.Hour)
		}
	}

	if local.Segments[0].Keywords[0].Word != "nul" || local.Segments[1].Keywords[0].Word != "een" {
		t.Fatalf("local keywords mutated: %+v", local.Segments)
	}
	if remote.Segments[0].Keywords[0].Word != "zero" || remote.Segments[1].Keywords[0].Word != "twee" {
		t.Fatalf("remote keywords mutated: %+v", remote.Segments)
	}
	if !local.Segments[0].Progress.LastReviewed.Equal(reviewed) {
		t.Fatalf("local review time mutated: %v", local.Segments[0].Progress.LastReviewed)
	}
}
