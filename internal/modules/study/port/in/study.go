package in

import (
	"context"

	"studysync/internal/modules/study/dto"
)

type Usecase interface {
	ListProjects(ctx context.Context) ([]dto.ProjectOutput, error)
	GetProject(ctx context.Context, id string) (dto.ProjectDetailOutput, error)
	RecordReview(ctx context.Context, input dto.RecordReviewInput) (dto.SegmentOutput, error)
	RenameSpeaker(ctx context.Context, input dto.RenameSpeakerInput) (dto.SpeakerOutput, error)
	DeleteProject(ctx context.Context, id string) error
}
