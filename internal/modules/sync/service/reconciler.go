package service

import (
	"context"

	"studysync/internal/modules/sync/domain"
)

type Reconciliation struct {
	Action    domain.Action
	ProjectID string
	Warnings  []domain.Warning
}

// Reconciler routes a remote snapshot to the importer or the merge engine
// depending on whether its key is already known locally.
type Reconciler struct {
	resolver *Resolver
	importer *Importer
	merger   *MergeEngine
}

func NewReconciler(resolver *Resolver, importer *Importer, merger *MergeEngine) *Reconciler {
	return &Reconciler{resolver: resolver, importer: importer, merger: merger}
}

func (r *Reconciler) Reconcile(ctx context.Context, snap domain.Snapshot) (Reconciliation, error) {
	projectID, found, err := r.resolver.Resolve(ctx, snap.Project.ID)
	if err != nil {
		return Reconciliation{}, err
	}
	if !found {
		newID, err := r.importer.Import(ctx, snap.Project.ID, snap)
		if err != nil {
			return Reconciliation{}, err
		}
		return Reconciliation{Action: domain.ActionImported, ProjectID: newID}, nil
	}
	report, err := r.merger.MergeAndApply(ctx, projectID, snap)
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{Action: domain.ActionMerged, ProjectID: projectID, Warnings: report.Warnings}, nil
}
