package in

import (
	"context"

	"studysync/internal/modules/sync/dto"
	syncin "studysync/internal/modules/sync/port/in"
)

type CLIHandler struct {
	usecase syncin.Usecase
}

func NewCLIHandler(usecase syncin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Run(ctx context.Context, direction string) (dto.RunOutput, error) {
	return h.usecase.Run(ctx, dto.RunInput{Direction: direction})
}

func (h CLIHandler) History(ctx context.Context, limit int) ([]dto.RunOutput, error) {
	return h.usecase.History(ctx, limit)
}

func (h CLIHandler) ExportProject(ctx context.Context, projectID string) (dto.ExportOutput, error) {
	return h.usecase.ExportProject(ctx, projectID)
}

func (h CLIHandler) ImportDocument(ctx context.Context, content []byte) (dto.ImportDocumentOutput, error) {
	return h.usecase.ImportDocument(ctx, dto.ImportDocumentInput{Content: content})
}
