// Command folder is a transport plugin that keeps the remote tree in a local
// directory, named by STUDYSYNC_FOLDER_DIR.
package main

import (
	"context"
	"fmt"
	"os"

	pluginrpc "studysync/internal/modules/plugin/adapter/out/rpc"
	syncadapter "studysync/internal/modules/sync/adapter/out"
	syncout "studysync/internal/modules/sync/port/out"
)

const dirEnv = "STUDYSYNC_FOLDER_DIR"

type server struct {
	backend *syncadapter.FolderTransport
}

func (s *server) GetMetadata(context.Context, *pluginrpc.Empty) (*pluginrpc.Metadata, error) {
	return &pluginrpc.Metadata{
		Name:         "folder",
		Version:      "1.0.0",
		Capabilities: []string{"transport", "audio"},
	}, nil
}

func (s *server) RootFolder(ctx context.Context, in *pluginrpc.RootFolderRequest) (*pluginrpc.FolderResponse, error) {
	id, err := s.backend.RootFolder(ctx, in.Name)
	if err != nil {
		return nil, pluginrpc.ToStatus(err)
	}
	return &pluginrpc.FolderResponse{ID: id}, nil
}

func (s *server) EnsureFolder(ctx context.Context, in *pluginrpc.EnsureFolderRequest) (*pluginrpc.FolderResponse, error) {
	id, err := s.backend.EnsureFolder(ctx, in.ParentID, in.Name)
	if err != nil {
		return nil, pluginrpc.ToStatus(err)
	}
	return &pluginrpc.FolderResponse{ID: id}, nil
}

func (s *server) ListFolders(ctx context.Context, in *pluginrpc.ListRequest) (*pluginrpc.ListResponse, error) {
	entries, err := s.backend.ListFolders(ctx, in.FolderID)
	if err != nil {
		return nil, pluginrpc.ToStatus(err)
	}
	return &pluginrpc.ListResponse{Entries: toRPC(entries)}, nil
}

func (s *server) ListFiles(ctx context.Context, in *pluginrpc.ListRequest) (*pluginrpc.ListResponse, error) {
	entries, err := s.backend.ListFiles(ctx, in.FolderID)
	if err != nil {
		return nil, pluginrpc.ToStatus(err)
	}
	return &pluginrpc.ListResponse{Entries: toRPC(entries)}, nil
}

func (s *server) Download(ctx context.Context, in *pluginrpc.DownloadRequest) (*pluginrpc.DownloadResponse, error) {
	content, err := s.backend.Download(ctx, in.FileID)
	if err != nil {
		return nil, pluginrpc.ToStatus(err)
	}
	return &pluginrpc.DownloadResponse{Content: content}, nil
}

func (s *server) Upload(ctx context.Context, in *pluginrpc.UploadRequest) (*pluginrpc.UploadResponse, error) {
	id, err := s.backend.UploadBytes(ctx, in.FolderID, in.Name, in.Content)
	if err != nil {
		return nil, pluginrpc.ToStatus(err)
	}
	return &pluginrpc.UploadResponse{ID: id}, nil
}

func toRPC(entries []syncout.Entry) []pluginrpc.Entry {
	out := make([]pluginrpc.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, pluginrpc.Entry{ID: e.ID, Name: e.Name, Size: e.Size, ModifiedAt: e.ModifiedAt})
	}
	return out
}

func main() {
	dir := os.Getenv(dirEnv)
	if dir == "" {
		fmt.Fprintf(os.Stderr, "%s is required\n", dirEnv)
		os.Exit(1)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", dir, err)
		os.Exit(1)
	}
	pluginrpc.Serve(&server{backend: syncadapter.NewFolderTransport(dir)})
}
