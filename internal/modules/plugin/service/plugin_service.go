package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"studysync/internal/modules/plugin/domain"
	"studysync/internal/modules/plugin/dto"
	pluginout "studysync/internal/modules/plugin/port/out"
)

type PluginService struct {
	store pluginout.ManifestStore
	host  pluginout.Host
}

func NewPluginService(store pluginout.ManifestStore, host pluginout.Host) *PluginService {
	return &PluginService{store: store, host: host}
}

func (s *PluginService) List(ctx context.Context) ([]dto.PluginInfo, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PluginInfo, 0, len(manifests))
	for _, m := range manifests {
		caps := make([]string, 0, len(m.Capabilities))
		for _, c := range m.Capabilities {
			caps = append(caps, string(c))
		}
		out = append(out, dto.PluginInfo{Name: m.Name, Version: m.Version, Enabled: m.Enabled, Binary: m.Binary, Capabilities: caps})
	}
	return out, nil
}

// Doctor checks every manifest without stopping at the first broken one.
func (s *PluginService) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]dto.DoctorResult, 0, len(manifests))
	for _, m := range manifests {
		results = append(results, s.diagnose(ctx, m))
	}
	return results, nil
}

func (s *PluginService) diagnose(ctx context.Context, m domain.Manifest) dto.DoctorResult {
	result := dto.DoctorResult{Name: m.Name}
	if err := m.Validate(); err != nil {
		result.Error = err.Error()
		return result
	}
	if !fileExists(m.Binary) {
		result.Error = fmt.Sprintf("binary does not exist: %s", m.Binary)
		return result
	}
	result.BinaryReachable = true
	if err := checksumMatches(m.Binary, m.SHA256); err != nil {
		result.Error = "checksum mismatch"
		return result
	}
	result.ChecksumValid = true
	if !m.Enabled || s.host == nil {
		return result
	}
	meta, err := s.host.GetMetadata(ctx, m)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.LifecycleOK = true
	result.ReportedVersion = meta.Version
	return result
}

// Open starts the named transport plugin after checking that it is enabled,
// declares the transport capability and matches its recorded checksum.
func (s *PluginService) Open(ctx context.Context, pluginName string) (pluginout.Session, error) {
	manifest, err := s.getRunnableManifest(ctx, pluginName, domain.CapabilityTransport)
	if err != nil {
		return nil, err
	}
	session, err := s.host.Open(ctx, manifest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPluginTimeout, pluginName)
		}
		return nil, err
	}
	return &gatedSession{Session: session, manifest: manifest}, nil
}

func (s *PluginService) loadValidated(ctx context.Context) ([]domain.Manifest, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	seenNames := map[string]struct{}{}
	for _, manifest := range manifests {
		if err := manifest.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seenNames[manifest.Name]; ok {
			return nil, fmt.Errorf("duplicate plugin name: %s", manifest.Name)
		}
		seenNames[manifest.Name] = struct{}{}
	}
	return manifests, nil
}

func (s *PluginService) getRunnableManifest(ctx context.Context, pluginName string, requiredCapability domain.Capability) (domain.Manifest, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return domain.Manifest{}, err
	}
	var manifest domain.Manifest
	found := false
	for _, item := range manifests {
		if item.Name == pluginName {
			manifest = item
			found = true
			break
		}
	}
	if !found {
		return domain.Manifest{}, fmt.Errorf("%w: %q", domain.ErrPluginNotFound, pluginName)
	}
	if !manifest.Enabled {
		return domain.Manifest{}, fmt.Errorf("%w: %s", domain.ErrPluginDisabled, pluginName)
	}
	if requiredCapability != "" && !manifest.HasCapability(requiredCapability) {
		return domain.Manifest{}, fmt.Errorf("%w: %s", domain.ErrCapabilityMissing, requiredCapability)
	}
	if err := checksumMatches(manifest.Binary, manifest.SHA256); err != nil {
		return domain.Manifest{}, err
	}
	if s.host == nil {
		return domain.Manifest{}, fmt.Errorf("no plugin host configured")
	}
	return manifest, nil
}

// gatedSession refuses binary uploads for plugins that only take snapshots.
type gatedSession struct {
	pluginout.Session
	manifest domain.Manifest
}

func (g *gatedSession) Upload(ctx context.Context, folderID, name, contentType string, content []byte) (string, error) {
	if contentType != domain.ContentTypeJSON && !g.manifest.HasCapability(domain.CapabilityAudio) {
		return "", fmt.Errorf("%w: %s on %s", domain.ErrCapabilityMissing, domain.CapabilityAudio, g.manifest.Name)
	}
	return g.Session.Upload(ctx, folderID, name, contentType, content)
}

func checksumMatches(path string, expected string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plugin binary: %w", err)
	}
	hash := sha256.Sum256(payload)
	actual := hex.EncodeToString(hash[:])
	if actual != expected {
		return fmt.Errorf("%w: %s", domain.ErrChecksumMismatch, filepath.Base(path))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
