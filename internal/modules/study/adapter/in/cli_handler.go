package in

import (
	"context"

	"studysync/internal/modules/study/dto"
	studyin "studysync/internal/modules/study/port/in"
)

type CLIHandler struct {
	usecase studyin.Usecase
}

func NewCLIHandler(usecase studyin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) ListProjects(ctx context.Context) ([]dto.ProjectOutput, error) {
	return h.usecase.ListProjects(ctx)
}

func (h CLIHandler) GetProject(ctx context.Context, id string) (dto.ProjectDetailOutput, error) {
	return h.usecase.GetProject(ctx, id)
}

func (h CLIHandler) RecordReview(ctx context.Context, projectID string, index int, learned bool, difficult *bool) (dto.SegmentOutput, error) {
	return h.usecase.RecordReview(ctx, dto.RecordReviewInput{ProjectID: projectID, Index: index, Learned: learned, Difficult: difficult})
}

func (h CLIHandler) RenameSpeaker(ctx context.Context, projectID, label, name string) (dto.SpeakerOutput, error) {
	return h.usecase.RenameSpeaker(ctx, dto.RenameSpeakerInput{ProjectID: projectID, Label: label, Name: name})
}

func (h CLIHandler) DeleteProject(ctx context.Context, id string) error {
	return h.usecase.DeleteProject(ctx, id)
}
