package out

import (
	"context"
	"time"

	"studysync/internal/modules/sync/domain"
)

// Entry is a folder or file as the remote store lists it.
type Entry struct {
	ID         string
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// Transport is the remote folder-and-file store. Every failure it returns
// wraps apperrors.ErrTransport, except lookups of ids that do not exist,
// which wrap apperrors.ErrNotFound.
type Transport interface {
	// RootFolder returns the id of the named top-level folder, creating it
	// when absent.
	RootFolder(ctx context.Context, name string) (string, error)
	// EnsureFolder returns the id of the child folder named name, creating it
	// when absent.
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)
	ListFolders(ctx context.Context, parentID string) ([]Entry, error)
	ListFiles(ctx context.Context, folderID string) ([]Entry, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	// UploadJSON writes name inside folderID, replacing a file of the same
	// name.
	UploadJSON(ctx context.Context, folderID, name string, content []byte) (string, error)
	UploadBytes(ctx context.Context, folderID, name string, content []byte) (string, error)
}

// AudioStore holds project audio locally, keyed by project id.
type AudioStore interface {
	Stat(ctx context.Context, projectID string) (size int64, ok bool, err error)
	Read(ctx context.Context, projectID string) ([]byte, error)
	Write(ctx context.Context, projectID string, content []byte) error
}

// RunGuard admits one sync run at a time. Acquire fails with
// apperrors.ErrSyncInProgress while another run holds it.
type RunGuard interface {
	Acquire(ctx context.Context) (release func(), err error)
}

type HistoryStore interface {
	Append(ctx context.Context, result domain.Result) error
	// Tail returns up to limit most recent results, oldest first.
	Tail(ctx context.Context, limit int) ([]domain.Result, error)
}
