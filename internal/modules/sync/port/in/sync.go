package in

import (
	"context"

	"studysync/internal/modules/sync/dto"
)

type Usecase interface {
	Run(ctx context.Context, input dto.RunInput) (dto.RunOutput, error)
	History(ctx context.Context, limit int) ([]dto.RunOutput, error)
	ExportProject(ctx context.Context, projectID string) (dto.ExportOutput, error)
	ImportDocument(ctx context.Context, input dto.ImportDocumentInput) (dto.ImportDocumentOutput, error)
}
