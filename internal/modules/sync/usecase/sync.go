package usecase

import (
	"context"
	"fmt"

	"studysync/internal/modules/sync/domain"
	"studysync/internal/modules/sync/dto"
	syncin "studysync/internal/modules/sync/port/in"
	"studysync/internal/modules/sync/service"
	"studysync/internal/platform/slug"
)

type Interactor struct {
	orchestrator *service.Orchestrator
	exporter     *service.Exporter
	reconciler   *service.Reconciler
}

func NewInteractor(orchestrator *service.Orchestrator, exporter *service.Exporter, reconciler *service.Reconciler) syncin.Usecase {
	return &Interactor{orchestrator: orchestrator, exporter: exporter, reconciler: reconciler}
}

func (i *Interactor) Run(ctx context.Context, input dto.RunInput) (dto.RunOutput, error) {
	direction, err := service.ParseDirection(input.Direction)
	if err != nil {
		return dto.RunOutput{}, err
	}
	return toRunOutput(i.orchestrator.PerformSync(ctx, service.Options{Direction: direction})), nil
}

func (i *Interactor) History(ctx context.Context, limit int) ([]dto.RunOutput, error) {
	results, err := i.orchestrator.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RunOutput, 0, len(results))
	for _, r := range results {
		out = append(out, toRunOutput(r))
	}
	return out, nil
}

func (i *Interactor) ExportProject(ctx context.Context, projectID string) (dto.ExportOutput, error) {
	snap, err := i.exporter.Export(ctx, projectID)
	if err != nil {
		return dto.ExportOutput{}, err
	}
	raw, err := domain.Encode(snap)
	if err != nil {
		return dto.ExportOutput{}, err
	}
	return dto.ExportOutput{ProjectID: projectID, FileName: slug.Filename(snap.Project.Name, "_export.json"), Content: raw}, nil
}

// ImportDocument reconciles a snapshot read from a local file the same way a
// downloaded one is.
func (i *Interactor) ImportDocument(ctx context.Context, input dto.ImportDocumentInput) (dto.ImportDocumentOutput, error) {
	snap, warnings, err := domain.Decode(input.Content)
	if err != nil {
		return dto.ImportDocumentOutput{}, fmt.Errorf("read document: %w", err)
	}
	rec, err := i.reconciler.Reconcile(ctx, snap)
	if err != nil {
		return dto.ImportDocumentOutput{}, err
	}
	out := dto.ImportDocumentOutput{ProjectID: rec.ProjectID, Action: string(rec.Action)}
	for _, w := range append(warnings, rec.Warnings...) {
		out.Warnings = append(out.Warnings, w.String())
	}
	return out, nil
}

func toRunOutput(r domain.Result) dto.RunOutput {
	out := dto.RunOutput{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Uploaded:   r.Uploaded,
		Downloaded: r.Downloaded,
		Imported:   r.Imported,
		Merged:     r.Merged,
		Message:    r.Message(),
		Outcomes:   make([]dto.OutcomeOutput, 0, len(r.Outcomes)),
		Failures:   make([]dto.FailureOutput, 0, len(r.Failures)),
	}
	for _, o := range r.Outcomes {
		out.Outcomes = append(out.Outcomes, dto.OutcomeOutput{
			ProjectKey: o.ProjectKey,
			ProjectID:  o.ProjectID,
			Name:       o.Name,
			Phase:      string(o.Phase),
			State:      string(o.State),
			Action:     string(o.Action),
			Reason:     o.Reason,
			Warnings:   o.Warnings,
		})
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, dto.FailureOutput{ProjectKey: f.ProjectKey, Phase: string(f.Phase), Kind: string(f.Kind), Reason: f.Reason})
	}
	return out
}
