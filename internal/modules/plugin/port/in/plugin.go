package in

import (
	"context"

	"studysync/internal/modules/plugin/dto"
)

type Usecase interface {
	List(ctx context.Context) ([]dto.PluginInfo, error)
	Doctor(ctx context.Context) ([]dto.DoctorResult, error)
	// OpenTransport starts the named plugin. The caller must Close the
	// returned transport.
	OpenTransport(ctx context.Context, pluginName string) (Transport, error)
}

type Transport interface {
	RootFolder(ctx context.Context, name string) (string, error)
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)
	ListFolders(ctx context.Context, parentID string) ([]dto.Entry, error)
	ListFiles(ctx context.Context, folderID string) ([]dto.Entry, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	Upload(ctx context.Context, folderID, name, contentType string, content []byte) (string, error)
	Close()
}
