package out_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	pluginadapter "studysync/internal/modules/plugin/adapter/out"
	"studysync/internal/modules/plugin/domain"
	apperrors "studysync/internal/platform/errors"
)

func TestGRPCHostIntegrationFolderPlugin(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs the folder plugin")
	}
	binPath, checksum := buildFolderPlugin(t)
	shared := t.TempDir()
	manifest := domain.Manifest{
		Name:         "folder",
		Version:      "1.0.0",
		Binary:       binPath,
		SHA256:       checksum,
		Enabled:      true,
		Capabilities: []domain.Capability{domain.CapabilityTransport, domain.CapabilityAudio},
		Env:          map[string]string{"STUDYSYNC_FOLDER_DIR": shared},
	}

	host := pluginadapter.NewGRPCHost(pluginadapter.HostOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := host.CheckLifecycle(ctx, manifest); err != nil {
		t.Fatalf("check lifecycle: %v", err)
	}
	metadata, err := host.GetMetadata(ctx, manifest)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if metadata.Name != "folder" || len(metadata.Capabilities) != 2 {
		t.Fatalf("unexpected metadata: %+v", metadata)
	}

	session, err := host.Open(ctx, manifest)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer session.Close()

	root, err := session.RootFolder(ctx, "StudySync")
	if err != nil {
		t.Fatalf("root folder: %v", err)
	}
	folder, err := session.EnsureFolder(ctx, root, "abc123")
	if err != nil {
		t.Fatalf("ensure folder: %v", err)
	}
	fileID, err := session.Upload(ctx, folder, "project.json", domain.ContentTypeJSON, []byte(`{"version":1}`))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(shared, "StudySync", "abc123", "project.json")); err != nil {
		t.Fatalf("plugin did not write into its directory: %v", err)
	}
	folders, err := session.ListFolders(ctx, root)
	if err != nil || len(folders) != 1 || folders[0].Name != "abc123" {
		t.Fatalf("list folders: %+v, %v", folders, err)
	}
	content, err := session.Download(ctx, fileID)
	if err != nil || string(content) != `{"version":1}` {
		t.Fatalf("download: %q, %v", content, err)
	}
	if _, err := session.Download(ctx, folder+"/missing.json"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found across the plugin boundary, got %v", err)
	}
}

func buildFolderPlugin(t *testing.T) (string, string) {
	t.Helper()
	tmp := t.TempDir()
	binPath := filepath.Join(tmp, "folder-plugin")
	cmd := exec.Command("go", "build", "-o", binPath, "./plugins/folder")
	cmd.Dir = repositoryRoot(t)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build folder plugin: %v\n%s", err, string(out))
	}
	payload, err := os.ReadFile(binPath)
	if err != nil {
		t.Fatalf("read built plugin: %v", err)
	}
	hash := sha256.Sum256(payload)
	return binPath, hex.EncodeToString(hash[:])
}

func repositoryRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "../../../../../"))
}
