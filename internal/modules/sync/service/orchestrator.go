package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	studydomain "studysync/internal/modules/study/domain"
	studyout "studysync/internal/modules/study/port/out"
	"studysync/internal/modules/sync/domain"
	syncout "studysync/internal/modules/sync/port/out"
	"studysync/internal/platform/clock"
	apperrors "studysync/internal/platform/errors"
	"studysync/internal/platform/id"
)

type Direction string

const (
	DirectionBoth     Direction = "both"
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

type Options struct {
	Direction Direction
}

func (d Direction) uploads() bool   { return d == DirectionBoth || d == DirectionUpload }
func (d Direction) downloads() bool { return d == DirectionBoth || d == DirectionDownload }

type OrchestratorConfig struct {
	RootFolder string
	// Workers bounds how many projects one phase processes at once.
	Workers int
}

type Orchestrator struct {
	cfg        OrchestratorConfig
	clock      clock.Clock
	ids        id.Generator
	store      studyout.Store
	exporter   *Exporter
	reconciler *Reconciler
	transport  syncout.Transport
	audio      syncout.AudioStore
	guard      syncout.RunGuard
	history    syncout.HistoryStore
	logger     *slog.Logger
}

func NewOrchestrator(
	cfg OrchestratorConfig,
	clock clock.Clock,
	ids id.Generator,
	store studyout.Store,
	exporter *Exporter,
	reconciler *Reconciler,
	transport syncout.Transport,
	audio syncout.AudioStore,
	guard syncout.RunGuard,
	history syncout.HistoryStore,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Orchestrator{
		cfg:        cfg,
		clock:      clock,
		ids:        ids,
		store:      store,
		exporter:   exporter,
		reconciler: reconciler,
		transport:  transport,
		audio:      audio,
		guard:      guard,
		history:    history,
		logger:     logger,
	}
}

// PerformSync runs the upload phase and then the download phase. It never
// fails: every problem is carried in the returned result. Cancelling ctx
// stops new projects from starting; a project already started finishes its
// write.
func (o *Orchestrator) PerformSync(ctx context.Context, opts Options) domain.Result {
	if opts.Direction == "" {
		opts.Direction = DirectionBoth
	}
	runID := o.ids.New()
	acc := domain.NewAccumulator(runID, o.clock.Now())
	logger := o.logger.With(slog.String("run", runID))

	release, err := o.guard.Acquire(ctx)
	if err != nil {
		acc.Fail(domain.PhaseRun, err)
		result := acc.Finish(o.clock.Now())
		logger.Warn("sync not started", slog.String("err", err.Error()))
		return result
	}
	defer release()

	logger.Info("sync started", slog.String("direction", string(opts.Direction)))
	// Setup reads ignore cancellation; it is honored between projects.
	rootID, err := o.transport.RootFolder(context.WithoutCancel(ctx), o.cfg.RootFolder)
	if err != nil {
		acc.Fail(domain.PhaseRun, fmt.Errorf("root folder %s: %w", o.cfg.RootFolder, err))
	} else {
		if opts.Direction.uploads() {
			o.uploadAll(ctx, logger, acc, rootID)
		}
		if opts.Direction.downloads() {
			o.downloadAll(ctx, logger, acc, rootID)
		}
	}

	result := acc.Finish(o.clock.Now())
	if err := o.history.Append(context.WithoutCancel(ctx), result); err != nil {
		logger.Warn("sync history not written", slog.String("err", err.Error()))
	}
	logger.Info("sync finished",
		slog.Int("uploaded", result.Uploaded),
		slog.Int("downloaded", result.Downloaded),
		slog.Int("imported", result.Imported),
		slog.Int("merged", result.Merged),
		slog.Int("failures", len(result.Failures)),
	)
	return result
}

// forEach runs fn for every item on a bounded group. Items not yet started
// when ctx is cancelled are recorded as skipped.
func forEach[T any](ctx context.Context, workers int, acc *domain.Accumulator, items []T, key func(T) string, phase domain.Phase, fn func(context.Context, *domain.ProjectRun, T)) {
	var g errgroup.Group
	g.SetLimit(workers)
	for _, item := range items {
		run := domain.NewProjectRun(key(item), phase)
		if ctx.Err() != nil {
			_ = run.Skip("cancelled")
			acc.Record(run)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				_ = run.Skip("cancelled")
				acc.Record(run)
				return nil
			}
			_ = run.Start()
			fn(context.WithoutCancel(ctx), run, item)
			acc.Record(run)
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) uploadAll(ctx context.Context, logger *slog.Logger, acc *domain.Accumulator, rootID string) {
	projects, err := o.store.ListProjects(context.WithoutCancel(ctx))
	if err != nil {
		acc.Fail(domain.PhaseUpload, fmt.Errorf("list local projects: %w", err))
		return
	}
	ready := projects[:0:0]
	for _, p := range projects {
		if p.Status == studydomain.StatusReady {
			ready = append(ready, p)
		}
	}
	forEach(ctx, o.cfg.Workers, acc, ready, studydomain.Project.SyncKey, domain.PhaseUpload,
		func(ctx context.Context, run *domain.ProjectRun, p studydomain.Project) {
			if err := o.upload(ctx, run, rootID, p); err != nil {
				logger.Warn("upload failed", slog.String("project", p.SyncKey()), slog.String("err", err.Error()))
				_ = run.Fail(err)
				return
			}
			_ = run.Succeed(domain.ActionUploaded, p.ID, p.Name)
		})
}

// upload publishes the project. A snapshot already in the folder may hold
// another device's progress, so it is merged into the local store first and
// the uploaded document is the merge of both copies.
func (o *Orchestrator) upload(ctx context.Context, run *domain.ProjectRun, rootID string, p studydomain.Project) error {
	folderID, err := o.transport.EnsureFolder(ctx, rootID, p.SyncKey())
	if err != nil {
		return err
	}
	files, err := o.transport.ListFiles(ctx, folderID)
	if err != nil {
		return err
	}
	remote, hasRemote, err := o.fetchPublished(ctx, run, p, files)
	if err != nil {
		return err
	}
	snap, err := o.exporter.Export(ctx, p.ID)
	if err != nil {
		return err
	}
	if hasRemote {
		snap = domain.Merge(snap, remote)
	}
	raw, err := domain.Encode(snap)
	if err != nil {
		return err
	}
	if _, err := o.transport.UploadJSON(ctx, folderID, domain.SnapshotFileName, raw); err != nil {
		return err
	}
	if err := o.uploadAudio(ctx, folderID, p.ID, files); err != nil {
		run.Warn("audio: " + err.Error())
	}
	return nil
}

// fetchPublished reads the snapshot currently published for p and folds it
// into the local project. A document that cannot be decoded or that belongs
// to another key is replaced and reported as a warning.
func (o *Orchestrator) fetchPublished(ctx context.Context, run *domain.ProjectRun, p studydomain.Project, files []syncout.Entry) (domain.Snapshot, bool, error) {
	file, ok := findEntry(files, domain.SnapshotFileName)
	if !ok {
		return domain.Snapshot{}, false, nil
	}
	raw, err := o.transport.Download(ctx, file.ID)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	remote, warnings, err := domain.Decode(raw)
	if err != nil {
		run.Warn("replacing unreadable remote snapshot: " + err.Error())
		return domain.Snapshot{}, false, nil
	}
	if remote.Project.ID != p.SyncKey() {
		run.Warn(fmt.Sprintf("replacing remote snapshot of project %s", remote.Project.ID))
		return domain.Snapshot{}, false, nil
	}
	for _, w := range warnings {
		run.Warn(w.String())
	}
	rec, err := o.reconciler.Reconcile(ctx, remote)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	if rec.ProjectID != p.ID {
		return domain.Snapshot{}, false, fmt.Errorf("%w: key %s resolved to %s, not %s", apperrors.ErrIdentityConflict, p.SyncKey(), rec.ProjectID, p.ID)
	}
	for _, w := range rec.Warnings {
		run.Warn(w.String())
	}
	return remote, true, nil
}

// uploadAudio sends the local recording when the remote copy is missing or
// differs in size.
func (o *Orchestrator) uploadAudio(ctx context.Context, folderID, projectID string, files []syncout.Entry) error {
	size, ok, err := o.audio.Stat(ctx, projectID)
	if err != nil || !ok {
		return err
	}
	if remote, found := findEntry(files, domain.AudioFileName); found && remote.Size == size {
		return nil
	}
	content, err := o.audio.Read(ctx, projectID)
	if err != nil {
		return err
	}
	_, err = o.transport.UploadBytes(ctx, folderID, domain.AudioFileName, content)
	return err
}

func (o *Orchestrator) downloadAll(ctx context.Context, logger *slog.Logger, acc *domain.Accumulator, rootID string) {
	folders, err := o.transport.ListFolders(context.WithoutCancel(ctx), rootID)
	if err != nil {
		acc.Fail(domain.PhaseDownload, fmt.Errorf("list remote projects: %w", err))
		return
	}
	forEach(ctx, o.cfg.Workers, acc, folders, func(e syncout.Entry) string { return e.Name }, domain.PhaseDownload,
		func(ctx context.Context, run *domain.ProjectRun, folder syncout.Entry) {
			rec, name, err := o.download(ctx, run, folder)
			if err != nil {
				logger.Warn("download failed", slog.String("project", folder.Name), slog.String("err", err.Error()))
				_ = run.Fail(err)
				return
			}
			_ = run.Succeed(rec.Action, rec.ProjectID, name)
		})
}

func (o *Orchestrator) download(ctx context.Context, run *domain.ProjectRun, folder syncout.Entry) (Reconciliation, string, error) {
	files, err := o.transport.ListFiles(ctx, folder.ID)
	if err != nil {
		return Reconciliation{}, "", err
	}
	snapshotFile, ok := findEntry(files, domain.SnapshotFileName)
	if !ok {
		return Reconciliation{}, "", fmt.Errorf("%w: %s not found in %s", apperrors.ErrNotFound, domain.SnapshotFileName, folder.Name)
	}
	raw, err := o.transport.Download(ctx, snapshotFile.ID)
	if err != nil {
		return Reconciliation{}, "", err
	}
	snap, warnings, err := domain.Decode(raw)
	if err != nil {
		return Reconciliation{}, "", fmt.Errorf("decode %s: %w", folder.Name, err)
	}
	for _, w := range warnings {
		run.Warn(w.String())
	}
	if snap.Project.ID != folder.Name {
		run.Warn(fmt.Sprintf("folder %s holds project %s", folder.Name, snap.Project.ID))
	}
	rec, err := o.reconciler.Reconcile(ctx, snap)
	if err != nil {
		return Reconciliation{}, "", err
	}
	for _, w := range rec.Warnings {
		run.Warn(w.String())
	}
	if audioFile, ok := findEntry(files, domain.AudioFileName); ok {
		if err := o.downloadAudio(ctx, rec.ProjectID, audioFile); err != nil {
			run.Warn("audio: " + err.Error())
		}
	}
	return rec, snap.Project.Name, nil
}

func (o *Orchestrator) downloadAudio(ctx context.Context, projectID string, file syncout.Entry) error {
	_, ok, err := o.audio.Stat(ctx, projectID)
	if err != nil || ok {
		return err
	}
	content, err := o.transport.Download(ctx, file.ID)
	if err != nil {
		return err
	}
	return o.audio.Write(ctx, projectID, content)
}

func findEntry(entries []syncout.Entry, name string) (syncout.Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return syncout.Entry{}, false
}

// History returns up to limit recorded runs, oldest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]domain.Result, error) {
	results, err := o.history.Tail(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read sync history: %w", err)
	}
	return results, nil
}

// ParseDirection accepts the direction names used on the command line.
func ParseDirection(value string) (Direction, error) {
	switch d := Direction(value); d {
	case "":
		return DirectionBoth, nil
	case DirectionBoth, DirectionUpload, DirectionDownload:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown sync direction %q", apperrors.ErrInvalidInput, value)
	}
}
