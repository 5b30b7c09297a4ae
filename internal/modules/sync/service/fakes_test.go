package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	studyadapter "studysync/internal/modules/study/adapter/out"
	studydomain "studysync/internal/modules/study/domain"
	"studysync/internal/modules/sync/domain"
	syncout "studysync/internal/modules/sync/port/out"
	"studysync/internal/modules/sync/service"
	"studysync/internal/platform/clock"
	apperrors "studysync/internal/platform/errors"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// counterIDs hands out predictable ids with a per-device prefix.
type counterIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (c *counterIDs) New() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("%s-%d", c.prefix, c.n)
}

type fakeFile struct {
	id      string
	name    string
	content []byte
}

type fakeFolder struct {
	id     string
	name   string
	parent string
}

// memTransport is an in-memory folder tree. failDownload makes Download fail
// for the listed file ids.
type memTransport struct {
	mu           sync.Mutex
	next         int
	folders      map[string]fakeFolder
	files        map[string][]*fakeFile
	failDownload map[string]bool
	failRoot     bool
}

func newMemTransport() *memTransport {
	return &memTransport{folders: map[string]fakeFolder{}, files: map[string][]*fakeFile{}, failDownload: map[string]bool{}}
}

func (m *memTransport) newID(kind string) string {
	m.next++
	return fmt.Sprintf("%s%d", kind, m.next)
}

func (m *memTransport) RootFolder(ctx context.Context, name string) (string, error) {
	if m.failRoot {
		return "", apperrors.Transport("root folder", name, fmt.Errorf("offline"))
	}
	return m.EnsureFolder(ctx, "", name)
}

func (m *memTransport) EnsureFolder(_ context.Context, parentID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.folders {
		if f.parent == parentID && f.name == name {
			return f.id, nil
		}
	}
	f := fakeFolder{id: m.newID("d"), name: name, parent: parentID}
	m.folders[f.id] = f
	return f.id, nil
}

func (m *memTransport) ListFolders(_ context.Context, parentID string) ([]syncout.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []syncout.Entry
	for _, f := range m.folders {
		if f.parent == parentID {
			out = append(out, syncout.Entry{ID: f.id, Name: f.name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memTransport) ListFiles(_ context.Context, folderID string) ([]syncout.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []syncout.Entry
	for _, f := range m.files[folderID] {
		out = append(out, syncout.Entry{ID: f.id, Name: f.name, Size: int64(len(f.content))})
	}
	return out, nil
}

func (m *memTransport) Download(_ context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDownload[fileID] {
		return nil, apperrors.Transport("download", fileID, fmt.Errorf("connection reset"))
	}
	for _, files := range m.files {
		for _, f := range files {
			if f.id == fileID {
				return append([]byte(nil), f.content...), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: file %s", apperrors.ErrNotFound, fileID)
}

func (m *memTransport) UploadJSON(ctx context.Context, folderID, name string, content []byte) (string, error) {
	return m.UploadBytes(ctx, folderID, name, content)
}

func (m *memTransport) UploadBytes(_ context.Context, folderID, name string, content []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files[folderID] {
		if f.name == name {
			f.content = append([]byte(nil), content...)
			return f.id, nil
		}
	}
	f := &fakeFile{id: m.newID("f"), name: name, content: append([]byte(nil), content...)}
	m.files[folderID] = append(m.files[folderID], f)
	return f.id, nil
}

// put publishes a raw document as <root>/<key>/project.json and returns the
// file id.
func (m *memTransport) put(t *testing.T, root, key string, doc []byte) string {
	t.Helper()
	ctx := context.Background()
	rootID, _ := m.RootFolder(ctx, root)
	folderID, _ := m.EnsureFolder(ctx, rootID, key)
	fileID, err := m.UploadJSON(ctx, folderID, domain.SnapshotFileName, doc)
	if err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
	return fileID
}

type memAudio struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemAudio() *memAudio { return &memAudio{blobs: map[string][]byte{}} }

func (a *memAudio) Stat(_ context.Context, projectID string) (int64, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.blobs[projectID]
	return int64(len(b)), ok, nil
}

func (a *memAudio) Read(_ context.Context, projectID string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.blobs[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: audio %s", apperrors.ErrNotFound, projectID)
	}
	return b, nil
}

func (a *memAudio) Write(_ context.Context, projectID string, content []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blobs[projectID] = content
	return nil
}

type chanGuard struct {
	slot chan struct{}
}

func newChanGuard() *chanGuard { return &chanGuard{slot: make(chan struct{}, 1)} }

func (g *chanGuard) Acquire(context.Context) (func(), error) {
	select {
	case g.slot <- struct{}{}:
		return func() { <-g.slot }, nil
	default:
		return nil, apperrors.ErrSyncInProgress
	}
}

type memHistory struct {
	mu      sync.Mutex
	results []domain.Result
}

func (h *memHistory) Append(_ context.Context, r domain.Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, r)
	return nil
}

func (h *memHistory) Tail(_ context.Context, limit int) ([]domain.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.results) {
		limit = len(h.results)
	}
	return append([]domain.Result(nil), h.results[len(h.results)-limit:]...), nil
}

// device is one local installation: its own store and id space, sharing a
// transport with other devices.
type device struct {
	store      *studyadapter.SQLiteStore
	ids        *counterIDs
	audio      *memAudio
	guard      *chanGuard
	history    *memHistory
	resolver   *service.Resolver
	exporter   *service.Exporter
	importer   *service.Importer
	merger     *service.MergeEngine
	reconciler *service.Reconciler
	sync       *service.Orchestrator
}

func newDevice(t *testing.T, name string, transport syncout.Transport) *device {
	t.Helper()
	store, err := studyadapter.NewSQLiteStore(filepath.Join(t.TempDir(), name+".db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	clk := clock.Fixed(testNow)
	d := &device{store: store, ids: &counterIDs{prefix: name}, audio: newMemAudio(), guard: newChanGuard(), history: &memHistory{}}
	logger := discardLogger()
	d.resolver = service.NewResolver(store)
	d.exporter = service.NewExporter(clk, store, store)
	d.importer = service.NewImporter(clk, d.ids, store, store, logger)
	d.merger = service.NewMergeEngine(d.exporter, store, store, logger)
	d.reconciler = service.NewReconciler(d.resolver, d.importer, d.merger)
	d.sync = service.NewOrchestrator(
		service.OrchestratorConfig{RootFolder: "StudySync", Workers: 2},
		clk, d.ids, store, d.exporter, d.reconciler, transport, d.audio, d.guard, d.history, logger,
	)
	return d
}

func localTree(projectID string, segments int) studydomain.Tree {
	tree := studydomain.Tree{
		Project: studydomain.Project{ID: projectID, Name: "Project " + projectID, Status: studydomain.StatusReady, TotalSegments: segments, CreatedAt: testNow, UpdatedAt: testNow},
		Speakers: []studydomain.Speaker{
			{ID: projectID + "-A", ProjectID: projectID, Label: "A", DisplayName: "Anna"},
			{ID: projectID + "-B", ProjectID: projectID, Label: "B"},
		},
	}
	for i := 0; i < segments; i++ {
		segID := fmt.Sprintf("%s-s%d", projectID, i)
		speaker := projectID + "-A"
		if i%2 == 1 {
			speaker = projectID + "-B"
		}
		tree.Segments = append(tree.Segments, studydomain.Segment{
			ID: segID, ProjectID: projectID, Index: i, Text: fmt.Sprintf("zin %d", i),
			StartTime: float64(i), EndTime: float64(i) + 0.9, Translation: fmt.Sprintf("sentence %d", i), SpeakerID: speaker,
		})
		tree.Keywords = append(tree.Keywords, studydomain.Keyword{ID: segID + "-k", SegmentID: segID, Word: fmt.Sprintf("woord%d", i), MeaningPrimary: "betekenis"})
	}
	return tree
}
