package out_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studysync/internal/modules/plugin/dto"
	pluginin "studysync/internal/modules/plugin/port/in"
	syncadapter "studysync/internal/modules/sync/adapter/out"
	apperrors "studysync/internal/platform/errors"
)

type recordingPlugin struct {
	opens   int
	openErr error
	tr      *recordingSession
}

func (p *recordingPlugin) List(context.Context) ([]dto.PluginInfo, error)     { return nil, nil }
func (p *recordingPlugin) Doctor(context.Context) ([]dto.DoctorResult, error) { return nil, nil }
func (p *recordingPlugin) OpenTransport(context.Context, string) (pluginin.Transport, error) {
	p.opens++
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.tr, nil
}

type recordingSession struct {
	contentTypes map[string]string
	closed       int
}

func (s *recordingSession) RootFolder(_ context.Context, name string) (string, error) {
	return name, nil
}
func (s *recordingSession) EnsureFolder(_ context.Context, parentID, name string) (string, error) {
	return parentID + "/" + name, nil
}
func (s *recordingSession) ListFolders(_ context.Context, parentID string) ([]dto.Entry, error) {
	return []dto.Entry{{ID: parentID + "/k", Name: "k"}}, nil
}
func (s *recordingSession) ListFiles(_ context.Context, folderID string) ([]dto.Entry, error) {
	return []dto.Entry{{ID: folderID + "/project.json", Name: "project.json", Size: 3}}, nil
}
func (s *recordingSession) Download(context.Context, string) ([]byte, error) {
	return []byte("{}"), nil
}
func (s *recordingSession) Upload(_ context.Context, folderID, name, contentType string, _ []byte) (string, error) {
	s.contentTypes[name] = contentType
	return folderID + "/" + name, nil
}
func (s *recordingSession) Close() { s.closed++ }

func TestPluginTransportOpensOnceAndForwards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	session := &recordingSession{contentTypes: map[string]string{}}
	plugins := &recordingPlugin{tr: session}
	transport := syncadapter.NewPluginTransport(plugins, "folder")

	root, err := transport.RootFolder(ctx, "StudySync")
	require.NoError(t, err)
	folders, err := transport.ListFolders(ctx, root)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	files, err := transport.ListFiles(ctx, folders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), files[0].Size)

	_, err = transport.UploadJSON(ctx, folders[0].ID, "project.json", []byte("{}"))
	require.NoError(t, err)
	_, err = transport.UploadBytes(ctx, folders[0].ID, "audio.mp3", []byte("ID3"))
	require.NoError(t, err)
	assert.Equal(t, "application/json", session.contentTypes["project.json"])
	assert.Equal(t, "application/octet-stream", session.contentTypes["audio.mp3"])
	assert.Equal(t, 1, plugins.opens)

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
	assert.Equal(t, 1, session.closed)
}

func TestPluginTransportReportsOpenFailure(t *testing.T) {
	t.Parallel()
	plugins := &recordingPlugin{openErr: apperrors.Transport("start", "folder", fmt.Errorf("exec format error"))}
	transport := syncadapter.NewPluginTransport(plugins, "folder")
	_, err := transport.RootFolder(context.Background(), "StudySync")
	assert.ErrorIs(t, err, apperrors.ErrTransport)
	_, err = transport.RootFolder(context.Background(), "StudySync")
	require.Error(t, err)
	assert.Equal(t, 2, plugins.opens)
}
