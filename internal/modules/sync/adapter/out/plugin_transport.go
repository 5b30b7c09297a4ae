package out

import (
	"context"
	"sync"

	"studysync/internal/modules/plugin/dto"
	pluginin "studysync/internal/modules/plugin/port/in"
	syncout "studysync/internal/modules/sync/port/out"
	apperrors "studysync/internal/platform/errors"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

// PluginTransport forwards every call to a transport plugin. The plugin
// process starts on first use and runs until Close.
type PluginTransport struct {
	plugins pluginin.Usecase
	name    string

	mu      sync.Mutex
	current pluginin.Transport
}

func NewPluginTransport(plugins pluginin.Usecase, name string) *PluginTransport {
	return &PluginTransport{plugins: plugins, name: name}
}

func (t *PluginTransport) session(ctx context.Context) (pluginin.Transport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		return t.current, nil
	}
	opened, err := t.plugins.OpenTransport(ctx, t.name)
	if err != nil {
		return nil, apperrors.Transport("open plugin", t.name, err)
	}
	t.current = opened
	return opened, nil
}

func (t *PluginTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.Close()
		t.current = nil
	}
	return nil
}

func (t *PluginTransport) RootFolder(ctx context.Context, name string) (string, error) {
	s, err := t.session(ctx)
	if err != nil {
		return "", err
	}
	return s.RootFolder(ctx, name)
}

func (t *PluginTransport) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	s, err := t.session(ctx)
	if err != nil {
		return "", err
	}
	return s.EnsureFolder(ctx, parentID, name)
}

func (t *PluginTransport) ListFolders(ctx context.Context, parentID string) ([]syncout.Entry, error) {
	s, err := t.session(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.ListFolders(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return fromPlugin(entries), nil
}

func (t *PluginTransport) ListFiles(ctx context.Context, folderID string) ([]syncout.Entry, error) {
	s, err := t.session(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}
	return fromPlugin(entries), nil
}

func (t *PluginTransport) Download(ctx context.Context, fileID string) ([]byte, error) {
	s, err := t.session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Download(ctx, fileID)
}

func (t *PluginTransport) UploadJSON(ctx context.Context, folderID, name string, content []byte) (string, error) {
	s, err := t.session(ctx)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, folderID, name, contentTypeJSON, content)
}

func (t *PluginTransport) UploadBytes(ctx context.Context, folderID, name string, content []byte) (string, error) {
	s, err := t.session(ctx)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, folderID, name, contentTypeBinary, content)
}

func fromPlugin(entries []dto.Entry) []syncout.Entry {
	out := make([]syncout.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, syncout.Entry{ID: e.ID, Name: e.Name, Size: e.Size, ModifiedAt: e.ModifiedAt})
	}
	return out
}
