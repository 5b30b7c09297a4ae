package usecase

import (
	"context"

	"studysync/internal/modules/study/domain"
	"studysync/internal/modules/study/dto"
	studyin "studysync/internal/modules/study/port/in"
	"studysync/internal/modules/study/service"
)

type Interactor struct {
	svc *service.StudyService
}

func NewInteractor(svc *service.StudyService) studyin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) ListProjects(ctx context.Context) ([]dto.ProjectOutput, error) {
	projects, err := i.svc.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	learned, err := i.svc.LearnedCounts(ctx, projects)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProjectOutput, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectOutput(p, learned[p.ID]))
	}
	return out, nil
}

func (i *Interactor) GetProject(ctx context.Context, id string) (dto.ProjectDetailOutput, error) {
	detail, err := i.svc.GetProject(ctx, id)
	if err != nil {
		return dto.ProjectDetailOutput{}, err
	}
	labels := make(map[string]string, len(detail.Speakers))
	speakers := make([]dto.SpeakerOutput, 0, len(detail.Speakers))
	for _, sp := range detail.Speakers {
		labels[sp.ID] = sp.Label
		speakers = append(speakers, toSpeakerOutput(sp))
	}
	learned := 0
	segments := make([]dto.SegmentOutput, 0, len(detail.Segments))
	for _, seg := range detail.Segments {
		if seg.Progress.Learned {
			learned++
		}
		out := toSegmentOutput(seg, labels[seg.SpeakerID])
		for _, kw := range detail.Keywords[seg.ID] {
			out.Keywords = append(out.Keywords, dto.KeywordOutput{Word: kw.Word, MeaningPrimary: kw.MeaningPrimary, MeaningSecondary: kw.MeaningSecondary})
		}
		segments = append(segments, out)
	}
	return dto.ProjectDetailOutput{
		Project:  toProjectOutput(detail.Project, learned),
		Speakers: speakers,
		Segments: segments,
	}, nil
}

func (i *Interactor) RecordReview(ctx context.Context, input dto.RecordReviewInput) (dto.SegmentOutput, error) {
	seg, err := i.svc.RecordReview(ctx, input.ProjectID, input.Index, input.Learned, input.Difficult)
	if err != nil {
		return dto.SegmentOutput{}, err
	}
	return toSegmentOutput(seg, ""), nil
}

func (i *Interactor) RenameSpeaker(ctx context.Context, input dto.RenameSpeakerInput) (dto.SpeakerOutput, error) {
	sp, err := i.svc.RenameSpeaker(ctx, input.ProjectID, input.Label, input.Name)
	if err != nil {
		return dto.SpeakerOutput{}, err
	}
	return toSpeakerOutput(sp), nil
}

func (i *Interactor) DeleteProject(ctx context.Context, id string) error {
	return i.svc.DeleteProject(ctx, id)
}

func toProjectOutput(p domain.Project, learned int) dto.ProjectOutput {
	return dto.ProjectOutput{
		ID:            p.ID,
		SourceID:      p.SourceID,
		SyncKey:       p.SyncKey(),
		Name:          p.Name,
		Status:        p.Status,
		TotalSegments: p.TotalSegments,
		Learned:       learned,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toSpeakerOutput(sp domain.Speaker) dto.SpeakerOutput {
	return dto.SpeakerOutput{ID: sp.ID, Label: sp.Label, Name: sp.EffectiveName(), Confidence: sp.Confidence, IsManual: sp.IsManual}
}

func toSegmentOutput(seg domain.Segment, speakerLabel string) dto.SegmentOutput {
	return dto.SegmentOutput{
		Index:        seg.Index,
		Text:         seg.Text,
		StartTime:    seg.StartTime,
		EndTime:      seg.EndTime,
		Translation:  seg.Translation,
		SpeakerLabel: speakerLabel,
		Learned:      seg.Progress.Learned,
		LearnCount:   seg.Progress.LearnCount,
		IsDifficult:  seg.Progress.IsDifficult,
		ReviewCount:  seg.Progress.ReviewCount,
		LastReviewed: seg.Progress.LastReviewed,
	}
}
