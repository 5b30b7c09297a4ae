package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"

	plugininadapter "studysync/internal/modules/plugin/adapter/in"
	pluginoutadapter "studysync/internal/modules/plugin/adapter/out"
	pluginin "studysync/internal/modules/plugin/port/in"
	pluginservice "studysync/internal/modules/plugin/service"
	pluginusecase "studysync/internal/modules/plugin/usecase"
	studyinadapter "studysync/internal/modules/study/adapter/in"
	studyoutadapter "studysync/internal/modules/study/adapter/out"
	studyservice "studysync/internal/modules/study/service"
	studyusecase "studysync/internal/modules/study/usecase"
	syncinadapter "studysync/internal/modules/sync/adapter/in"
	syncoutadapter "studysync/internal/modules/sync/adapter/out"
	syncout "studysync/internal/modules/sync/port/out"
	syncservice "studysync/internal/modules/sync/service"
	syncusecase "studysync/internal/modules/sync/usecase"
	"studysync/internal/platform/clock"
	"studysync/internal/platform/config"
	"studysync/internal/platform/id"
	"studysync/internal/platform/logging"
	uiapp "studysync/internal/ui/app"
)

type App struct {
	StudyCLI  studyinadapter.CLIHandler
	SyncCLI   syncinadapter.CLIHandler
	PluginCLI plugininadapter.CLIHandler
	Logger    *slog.Logger

	closers []io.Closer
}

// Close releases the store, any running plugin process and the log file, in
// reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func New(ctx context.Context, cfg config.Config, stderr io.Writer) (*App, error) {
	logger, logCloser := logging.New(cfg.Log, stderr)
	app := &App{Logger: logger, closers: []io.Closer{logCloser}}

	clk := clock.SystemClock{}
	ids := id.UUID{}

	store, err := studyoutadapter.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("new study store: %w", err)
	}
	app.closers = append(app.closers, store)
	studyUC := studyusecase.NewInteractor(studyservice.NewStudyService(clk, store, store, logger))

	pluginUC := pluginusecase.NewInteractor(pluginservice.NewPluginService(
		pluginoutadapter.NewFileManifestStore(cfg.DataDir),
		pluginoutadapter.NewGRPCHost(pluginoutadapter.HostOptions{
			StartTimeout: cfg.Sync.Plugin.StartTimeout,
			CallTimeout:  cfg.Sync.Plugin.CallTimeout,
			Logger: hclog.New(&hclog.LoggerOptions{
				Name:   "plugin",
				Output: stderr,
				Level:  hclog.LevelFromString(cfg.Log.Level),
			}),
		}),
	))

	transport, err := newTransport(ctx, cfg.Sync, pluginUC)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if c, ok := transport.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}
	logger.Debug("sync transport ready", "transport", cfg.Sync.Transport)

	resolver := syncservice.NewResolver(store)
	exporter := syncservice.NewExporter(clk, store, store)
	importer := syncservice.NewImporter(clk, ids, store, store, logger)
	merger := syncservice.NewMergeEngine(exporter, store, store, logger)
	reconciler := syncservice.NewReconciler(resolver, importer, merger)
	orchestrator := syncservice.NewOrchestrator(
		syncservice.OrchestratorConfig{RootFolder: cfg.Sync.RootFolder, Workers: cfg.Sync.Workers},
		clk,
		ids,
		store,
		exporter,
		reconciler,
		transport,
		syncoutadapter.NewAudioStore(cfg.AudioDir),
		syncoutadapter.NewLockGuard(cfg.DataDir),
		syncoutadapter.NewFileHistoryStore(cfg.DataDir),
		logger,
	)

	app.StudyCLI = studyinadapter.NewCLIHandler(studyUC)
	app.SyncCLI = syncinadapter.NewCLIHandler(syncusecase.NewInteractor(orchestrator, exporter, reconciler))
	app.PluginCLI = plugininadapter.NewCLIHandler(pluginUC)
	return app, nil
}

func newTransport(ctx context.Context, cfg config.SyncConfig, plugins pluginin.Usecase) (syncout.Transport, error) {
	switch cfg.Transport {
	case "folder":
		return syncoutadapter.NewFolderTransport(cfg.Folder.Path), nil
	case "minio":
		t, err := syncoutadapter.NewMinioTransport(syncoutadapter.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			Prefix:    cfg.Minio.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("new minio transport: %w", err)
		}
		return t, nil
	case "s3":
		t, err := syncoutadapter.NewS3Transport(ctx, syncoutadapter.S3Config{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Prefix:   cfg.S3.Prefix,
			Endpoint: cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("new s3 transport: %w", err)
		}
		return t, nil
	case "drive":
		t, err := syncoutadapter.NewDriveTransport(ctx, cfg.Drive.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("new drive transport: %w", err)
		}
		return t, nil
	case "plugin":
		return syncoutadapter.NewPluginTransport(plugins, cfg.Plugin.Name), nil
	}
	return nil, fmt.Errorf("unknown sync transport: %s", cfg.Transport)
}

func RunTUI(app *App) error {
	model := uiapp.NewModel(app.StudyCLI, app.SyncCLI, app.PluginCLI)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
