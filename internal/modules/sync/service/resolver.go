package service

import (
	"context"
	"fmt"
	"strings"

	studyout "studysync/internal/modules/study/port/out"
	apperrors "studysync/internal/platform/errors"
)

// Resolver maps a sync key to the local project published under it.
type Resolver struct {
	store studyout.Store
}

func NewResolver(store studyout.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the local project id for key. It reads the store on every
// call. Two local projects claiming the same key is reported as
// ErrIdentityConflict.
func (r *Resolver) Resolve(ctx context.Context, key string) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("%w: sync key is required", apperrors.ErrInvalidInput)
	}
	projects, err := r.store.FindProjectsBySyncKey(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", key, err)
	}
	switch len(projects) {
	case 0:
		return "", false, nil
	case 1:
		return projects[0].ID, true, nil
	default:
		ids := make([]string, 0, len(projects))
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
		return "", false, fmt.Errorf("%w: key %s claimed by %s", apperrors.ErrIdentityConflict, key, strings.Join(ids, ", "))
	}
}
