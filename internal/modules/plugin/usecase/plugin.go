package usecase

import (
	"context"

	"studysync/internal/modules/plugin/domain"
	"studysync/internal/modules/plugin/dto"
	pluginin "studysync/internal/modules/plugin/port/in"
	pluginout "studysync/internal/modules/plugin/port/out"
	"studysync/internal/modules/plugin/service"
)

type Interactor struct {
	svc *service.PluginService
}

func NewInteractor(svc *service.PluginService) pluginin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) List(ctx context.Context) ([]dto.PluginInfo, error) {
	return i.svc.List(ctx)
}

func (i *Interactor) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return i.svc.Doctor(ctx)
}

func (i *Interactor) OpenTransport(ctx context.Context, pluginName string) (pluginin.Transport, error) {
	session, err := i.svc.Open(ctx, pluginName)
	if err != nil {
		return nil, err
	}
	return transport{session: session}, nil
}

type transport struct {
	session pluginout.Session
}

func (t transport) RootFolder(ctx context.Context, name string) (string, error) {
	return t.session.RootFolder(ctx, name)
}

func (t transport) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	return t.session.EnsureFolder(ctx, parentID, name)
}

func (t transport) ListFolders(ctx context.Context, parentID string) ([]dto.Entry, error) {
	entries, err := t.session.ListFolders(ctx, parentID)
	return toDTO(entries), err
}

func (t transport) ListFiles(ctx context.Context, folderID string) ([]dto.Entry, error) {
	entries, err := t.session.ListFiles(ctx, folderID)
	return toDTO(entries), err
}

func (t transport) Download(ctx context.Context, fileID string) ([]byte, error) {
	return t.session.Download(ctx, fileID)
}

func (t transport) Upload(ctx context.Context, folderID, name, contentType string, content []byte) (string, error) {
	return t.session.Upload(ctx, folderID, name, contentType, content)
}

func (t transport) Close() {
	t.session.Close()
}

func toDTO(entries []domain.Entry) []dto.Entry {
	if entries == nil {
		return nil
	}
	out := make([]dto.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.Entry{ID: e.ID, Name: e.Name, Size: e.Size, ModifiedAt: e.ModifiedAt})
	}
	return out
}
