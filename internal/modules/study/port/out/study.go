package out

import (
	"context"
	"time"

	"studysync/internal/modules/study/domain"
)

// Store is the local persistent store for study projects. Implementations
// join the transaction carried by ctx when one is active.
type Store interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetProject(ctx context.Context, id string) (domain.Project, error)
	// FindProjectsBySyncKey returns every project whose source id is key, or
	// whose id is key when it has no source id.
	FindProjectsBySyncKey(ctx context.Context, key string) ([]domain.Project, error)
	ListSegments(ctx context.Context, projectID string) ([]domain.Segment, error)
	ListKeywordsBySegmentIDs(ctx context.Context, segmentIDs []string) (map[string][]domain.Keyword, error)
	ListSpeakers(ctx context.Context, projectID string) ([]domain.Speaker, error)
	InsertProjectTree(ctx context.Context, tree domain.Tree) error
	UpdateSegmentProgress(ctx context.Context, segmentID string, progress domain.Progress) error
	UpdateSpeakerName(ctx context.Context, speakerID, displayName string, isManual bool, at time.Time) error
	DeleteProject(ctx context.Context, id string) error
}
