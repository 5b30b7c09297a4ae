package domain

import (
	"fmt"
	"slices"
	"sort"
	"time"

	studydomain "studysync/internal/modules/study/domain"
)

// Merge combines two snapshots of the same project. Segments are paired by
// position index and speakers by label. Paired entries take their content
// from local and their progress from both sides; unpaired entries pass
// through unchanged. Progress merging is commutative, associative and
// idempotent.
func Merge(local, remote Snapshot) Snapshot {
	merged, _ := MergeDetailed(local, remote)
	return merged
}

// MergeDetailed is Merge that also reports the entries it had to skip.
func MergeDetailed(local, remote Snapshot) (Snapshot, []Warning) {
	var warnings []Warning
	localSegs := indexSegments("local", local.Segments, &warnings)
	remoteSegs := indexSegments("remote", remote.Segments, &warnings)

	indices := make([]int, 0, len(localSegs)+len(remoteSegs))
	for idx := range localSegs {
		indices = append(indices, idx)
	}
	for idx := range remoteSegs {
		if _, ok := localSegs[idx]; !ok {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	segments := make([]Segment, 0, len(indices))
	for _, idx := range indices {
		l, inLocal := localSegs[idx]
		r, inRemote := remoteSegs[idx]
		switch {
		case inLocal && inRemote:
			seg := cloneSegment(l)
			seg.Progress = MergeProgress(l.Progress, r.Progress)
			segments = append(segments, seg)
		case inLocal:
			segments = append(segments, cloneSegment(l))
		default:
			segments = append(segments, cloneSegment(r))
		}
	}

	return Snapshot{
		Version:    local.Version,
		ExportedAt: later(local.ExportedAt, remote.ExportedAt),
		Project: ProjectHeader{
			ID:            local.Project.ID,
			Name:          local.Project.Name,
			TotalSegments: max(local.Project.TotalSegments, remote.Project.TotalSegments),
		},
		Speakers: mergeSpeakers(local.Speakers, remote.Speakers),
		Segments: segments,
	}, warnings
}

// MergeProgress applies the field rules: OR for flags, max for counters and
// the later review timestamp.
func MergeProgress(a, b studydomain.Progress) studydomain.Progress {
	out := studydomain.Progress{
		Learned:     a.Learned || b.Learned,
		LearnCount:  max(a.LearnCount, b.LearnCount),
		IsDifficult: a.IsDifficult || b.IsDifficult,
		ReviewCount: max(a.ReviewCount, b.ReviewCount),
	}
	switch {
	case a.LastReviewed == nil && b.LastReviewed == nil:
	case a.LastReviewed == nil:
		t := *b.LastReviewed
		out.LastReviewed = &t
	case b.LastReviewed == nil:
		t := *a.LastReviewed
		out.LastReviewed = &t
	default:
		t := later(*a.LastReviewed, *b.LastReviewed)
		out.LastReviewed = &t
	}
	return out
}

// MergeSpeaker keeps local content and picks the display name by
// precedence: a manual pin, then the more recently computed name, then a
// non-empty name, then the greater name so the choice never depends on
// argument order.
func MergeSpeaker(local, remote Speaker) Speaker {
	out := local
	winner := local
	if speakerNameOutranks(remote, local) {
		winner = remote
	}
	out.DisplayName = winner.DisplayName
	out.NameUpdatedAt = winner.NameUpdatedAt
	out.IsManual = local.IsManual || remote.IsManual
	return out
}

func speakerNameOutranks(a, b Speaker) bool {
	if a.IsManual != b.IsManual {
		return a.IsManual
	}
	if !a.NameUpdatedAt.Equal(b.NameUpdatedAt) {
		return a.NameUpdatedAt.After(b.NameUpdatedAt)
	}
	if (a.DisplayName == "") != (b.DisplayName == "") {
		return a.DisplayName != ""
	}
	return a.DisplayName > b.DisplayName
}

func mergeSpeakers(local, remote []Speaker) []Speaker {
	remoteByLabel := make(map[string]Speaker, len(remote))
	for _, sp := range remote {
		if _, dup := remoteByLabel[sp.Label]; !dup {
			remoteByLabel[sp.Label] = sp
		}
	}
	out := make([]Speaker, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local))
	for _, sp := range local {
		if _, dup := seen[sp.Label]; dup {
			continue
		}
		seen[sp.Label] = struct{}{}
		if r, ok := remoteByLabel[sp.Label]; ok {
			out = append(out, MergeSpeaker(sp, r))
			continue
		}
		out = append(out, sp)
	}
	for _, sp := range remote {
		if _, ok := seen[sp.Label]; ok {
			continue
		}
		seen[sp.Label] = struct{}{}
		out = append(out, sp)
	}
	return out
}

func indexSegments(side string, segments []Segment, warnings *[]Warning) map[int]Segment {
	out := make(map[int]Segment, len(segments))
	for i, seg := range segments {
		record := fmt.Sprintf("%s.segment[%d]", side, i)
		if seg.Index < 0 {
			*warnings = append(*warnings, Warning{Record: record, Reason: "negative index"})
			continue
		}
		if _, dup := out[seg.Index]; dup {
			*warnings = append(*warnings, Warning{Record: record, Reason: fmt.Sprintf("duplicate index %d", seg.Index)})
			continue
		}
		out[seg.Index] = seg
	}
	return out
}

// cloneSegment copies seg so the merged snapshot shares no slice or pointer
// with its inputs.
func cloneSegment(seg Segment) Segment {
	seg.Keywords = slices.Clone(seg.Keywords)
	if seg.Progress.LastReviewed != nil {
		t := *seg.Progress.LastReviewed
		seg.Progress.LastReviewed = &t
	}
	return seg
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
