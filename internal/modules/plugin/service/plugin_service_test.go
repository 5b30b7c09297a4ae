package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"studysync/internal/modules/plugin/domain"
	pluginout "studysync/internal/modules/plugin/port/out"
	"studysync/internal/modules/plugin/service"
)

type fakeStore struct {
	manifests []domain.Manifest
}

func (s fakeStore) Load(context.Context) ([]domain.Manifest, error) {
	return s.manifests, nil
}

type fakeSession struct {
	uploads []string
	closed  bool
}

func (*fakeSession) RootFolder(context.Context, string) (string, error) { return "root", nil }
func (*fakeSession) EnsureFolder(_ context.Context, parentID, name string) (string, error) {
	return parentID + "/" + name, nil
}
func (*fakeSession) ListFolders(context.Context, string) ([]domain.Entry, error) { return nil, nil }
func (*fakeSession) ListFiles(context.Context, string) ([]domain.Entry, error)   { return nil, nil }
func (*fakeSession) Download(context.Context, string) ([]byte, error)            { return nil, nil }
func (s *fakeSession) Upload(_ context.Context, folderID, name, _ string, _ []byte) (string, error) {
	s.uploads = append(s.uploads, name)
	return folderID + "/" + name, nil
}
func (s *fakeSession) Close() { s.closed = true }

type fakeHost struct {
	session *fakeSession
	openErr error
}

func (fakeHost) CheckLifecycle(context.Context, domain.Manifest) error { return nil }
func (fakeHost) GetMetadata(context.Context, domain.Manifest) (domain.Metadata, error) {
	return domain.Metadata{Name: "fake", Version: "2.0.0"}, nil
}
func (h fakeHost) Open(context.Context, domain.Manifest) (pluginout.Session, error) {
	if h.openErr != nil {
		return nil, h.openErr
	}
	return h.session, nil
}

func TestOpenRejectsDisabledPlugin(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, false, []domain.Capability{domain.CapabilityTransport})
	svc := service.NewPluginService(fakeStore{manifests: []domain.Manifest{manifest}}, fakeHost{session: &fakeSession{}})
	if _, err := svc.Open(context.Background(), manifest.Name); !errors.Is(err, domain.ErrPluginDisabled) {
		t.Fatalf("expected ErrPluginDisabled, got %v", err)
	}
}

func TestOpenRejectsUnknownPlugin(t *testing.T) {
	t.Parallel()
	svc := service.NewPluginService(fakeStore{}, fakeHost{session: &fakeSession{}})
	if _, err := svc.Open(context.Background(), "nope"); !errors.Is(err, domain.ErrPluginNotFound) {
		t.Fatalf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestOpenRejectsTamperedBinary(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, true, []domain.Capability{domain.CapabilityTransport})
	if err := os.WriteFile(manifest.Binary, []byte("swapped"), 0o755); err != nil {
		t.Fatalf("rewrite binary: %v", err)
	}
	svc := service.NewPluginService(fakeStore{manifests: []domain.Manifest{manifest}}, fakeHost{session: &fakeSession{}})
	if _, err := svc.Open(context.Background(), manifest.Name); !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestOpenMapsStartTimeout(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, true, []domain.Capability{domain.CapabilityTransport})
	svc := service.NewPluginService(fakeStore{manifests: []domain.Manifest{manifest}}, fakeHost{openErr: context.DeadlineExceeded})
	if _, err := svc.Open(context.Background(), manifest.Name); !errors.Is(err, domain.ErrPluginTimeout) {
		t.Fatalf("expected ErrPluginTimeout, got %v", err)
	}
}

func TestSessionWithoutAudioCapabilityRefusesBinaryUploads(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, true, []domain.Capability{domain.CapabilityTransport})
	fake := &fakeSession{}
	svc := service.NewPluginService(fakeStore{manifests: []domain.Manifest{manifest}}, fakeHost{session: fake})
	session, err := svc.Open(context.Background(), manifest.Name)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer session.Close()

	ctx := context.Background()
	if _, err := session.Upload(ctx, "d", "project.json", domain.ContentTypeJSON, []byte(`{}`)); err != nil {
		t.Fatalf("json upload: %v", err)
	}
	if _, err := session.Upload(ctx, "d", "audio.mp3", domain.ContentTypeBinary, []byte("ID3")); !errors.Is(err, domain.ErrCapabilityMissing) {
		t.Fatalf("expected ErrCapabilityMissing, got %v", err)
	}
	if len(fake.uploads) != 1 || fake.uploads[0] != "project.json" {
		t.Fatalf("unexpected uploads %v", fake.uploads)
	}
}

func TestListRejectsDuplicateNames(t *testing.T) {
	t.Parallel()
	a := manifestWithBinary(t, true, []domain.Capability{domain.CapabilityTransport})
	svc := service.NewPluginService(fakeStore{manifests: []domain.Manifest{a, a}}, nil)
	if _, err := svc.List(context.Background()); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestDoctorReportsRunningVersion(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, true, []domain.Capability{domain.CapabilityTransport})
	broken := domain.Manifest{Name: "broken"}
	svc := service.NewPluginService(fakeStore{manifests: []domain.Manifest{manifest, broken}}, fakeHost{session: &fakeSession{}})
	results, err := svc.Doctor(context.Background())
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	if !results[0].LifecycleOK || results[0].ReportedVersion != "2.0.0" || results[0].Error != "" {
		t.Fatalf("unexpected healthy result %+v", results[0])
	}
	if results[1].Error == "" || results[1].BinaryReachable {
		t.Fatalf("unexpected broken result %+v", results[1])
	}
}

func manifestWithBinary(t *testing.T, enabled bool, capabilities []domain.Capability) domain.Manifest {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "plugin-bin")
	if err := os.WriteFile(binPath, []byte("binary"), 0o755); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	hash := sha256.Sum256([]byte("binary"))
	return domain.Manifest{
		Name:         "demo",
		Version:      "1.0.0",
		Binary:       binPath,
		SHA256:       hex.EncodeToString(hash[:]),
		Enabled:      enabled,
		Capabilities: capabilities,
	}
}
