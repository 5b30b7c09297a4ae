package out

import (
	"context"

	"studysync/internal/modules/plugin/domain"
)

type ManifestStore interface {
	Load(ctx context.Context) ([]domain.Manifest, error)
}

// Session is a running transport plugin. Close stops the plugin process.
type Session interface {
	RootFolder(ctx context.Context, name string) (string, error)
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)
	ListFolders(ctx context.Context, parentID string) ([]domain.Entry, error)
	ListFiles(ctx context.Context, folderID string) ([]domain.Entry, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	Upload(ctx context.Context, folderID, name, contentType string, content []byte) (string, error)
	Close()
}

type Host interface {
	CheckLifecycle(ctx context.Context, manifest domain.Manifest) error
	GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error)
	Open(ctx context.Context, manifest domain.Manifest) (Session, error)
}
