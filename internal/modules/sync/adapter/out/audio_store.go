package out

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	apperrors "studysync/internal/platform/errors"
)

// AudioStore keeps one recording per project as <projectID>.mp3.
type AudioStore struct {
	fs billy.Filesystem
}

func NewAudioStore(dir string) *AudioStore {
	return NewAudioStoreFS(osfs.New(dir))
}

func NewAudioStoreFS(filesystem billy.Filesystem) *AudioStore {
	return &AudioStore{fs: filesystem}
}

func audioName(projectID string) (string, error) {
	if err := checkName(projectID); err != nil {
		return "", err
	}
	return projectID + ".mp3", nil
}

func (s *AudioStore) Stat(_ context.Context, projectID string) (int64, bool, error) {
	name, err := audioName(projectID)
	if err != nil {
		return 0, false, err
	}
	info, err := s.fs.Stat(name)
	switch {
	case err == nil:
		return info.Size(), true, nil
	case errors.Is(err, fs.ErrNotExist):
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("stat audio %s: %w", projectID, err)
	}
}

func (s *AudioStore) Read(_ context.Context, projectID string) ([]byte, error) {
	name, err := audioName(projectID)
	if err != nil {
		return nil, err
	}
	content, err := util.ReadFile(s.fs, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: audio for %s", apperrors.ErrNotFound, projectID)
		}
		return nil, fmt.Errorf("read audio %s: %w", projectID, err)
	}
	return content, nil
}

func (s *AudioStore) Write(_ context.Context, projectID string, content []byte) error {
	name, err := audioName(projectID)
	if err != nil {
		return err
	}
	tmp := "." + name + ".part"
	if err := util.WriteFile(s.fs, tmp, content, 0o644); err != nil {
		return fmt.Errorf("write audio %s: %w", projectID, err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write audio %s: %w", projectID, err)
	}
	return nil
}
