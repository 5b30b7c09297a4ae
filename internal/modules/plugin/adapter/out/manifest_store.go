package out

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"studysync/internal/modules/plugin/domain"
	pluginout "studysync/internal/modules/plugin/port/out"
)

type manifestFile struct {
	Plugins []domain.Manifest `yaml:"plugins"`
}

type FileManifestStore struct {
	basePath string
	path     string
}

// NewFileManifestStore reads <basePath>/plugins/plugins.yaml. Relative binary
// paths resolve against basePath.
func NewFileManifestStore(basePath string) pluginout.ManifestStore {
	return &FileManifestStore{basePath: basePath, path: filepath.Join(basePath, "plugins", "plugins.yaml")}
}

func (s *FileManifestStore) Load(_ context.Context) ([]domain.Manifest, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Manifest{}, nil
		}
		return nil, fmt.Errorf("read plugin manifest store: %w", err)
	}
	var file manifestFile
	decoder := yaml.NewDecoder(bytes.NewReader(b))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode plugin manifests: %w", err)
	}
	manifests := file.Plugins
	if manifests == nil {
		manifests = []domain.Manifest{}
	}
	for i := range manifests {
		if manifests[i].Binary != "" && !filepath.IsAbs(manifests[i].Binary) {
			manifests[i].Binary = filepath.Clean(filepath.Join(s.basePath, manifests[i].Binary))
		}
	}
	return manifests, nil
}
