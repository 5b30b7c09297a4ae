package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"studysync/internal/bootstrap"
	syncdto "studysync/internal/modules/sync/dto"
	"studysync/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	dataDir    string
	configFile string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "studysync",
		Short:         "Sync language study projects between devices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data", defaultDataDir(), "local data directory")
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default <data>/studysync.yaml)")

	root.AddCommand(newTUICmd(flags))
	root.AddCommand(newProjectCmd(flags))
	root.AddCommand(newSyncCmd(flags))
	root.AddCommand(newPluginCmd(flags))
	return root
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "studysync")
	}
	return ".studysync"
}

// withApp builds the application, runs fn and releases it afterwards.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := config.Load(flags.dataDir, flags.configFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := bootstrap.New(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	runErr := fn(ctx, app)
	return errors.Join(runErr, app.Close())
}

func newTUICmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(_ context.Context, app *bootstrap.App) error {
				return bootstrap.RunTUI(app)
			})
		},
	}
}

func newProjectCmd(flags *globalFlags) *cobra.Command {
	project := &cobra.Command{Use: "project", Short: "Local project commands"}

	project.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List local projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				projects, err := app.StudyCLI.ListProjects(ctx)
				if err != nil {
					return err
				}
				if len(projects) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no projects")
					return nil
				}
				for _, p := range projects {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d/%d learned\tkey=%s\n",
						p.ID, p.Name, p.Status, p.Learned, p.TotalSegments, p.SyncKey)
				}
				return nil
			})
		},
	})

	project.AddCommand(&cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its speakers and segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				detail, err := app.StudyCLI.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				p := detail.Project
				_, _ = fmt.Fprintf(out, "%s (%s) status=%s segments=%d key=%s\n", p.Name, p.ID, p.Status, p.TotalSegments, p.SyncKey)
				for _, sp := range detail.Speakers {
					_, _ = fmt.Fprintf(out, "speaker %s name=%q manual=%t\n", sp.Label, sp.Name, sp.IsManual)
				}
				for _, seg := range detail.Segments {
					mark := " "
					if seg.Learned {
						mark = "x"
					}
					_, _ = fmt.Fprintf(out, "[%s] %3d %s: %s\n", mark, seg.Index, seg.SpeakerLabel, seg.Text)
				}
				return nil
			})
		},
	})

	var unlearned, difficult, easy bool
	reviewCmd := &cobra.Command{
		Use:   "review <project-id> <index>",
		Short: "Record a review of one segment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid segment index %q", args[1])
			}
			if difficult && easy {
				return fmt.Errorf("--difficult and --easy are mutually exclusive")
			}
			var flag *bool
			switch {
			case difficult:
				flag = &difficult
			case easy:
				v := false
				flag = &v
			}
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				seg, err := app.StudyCLI.RecordReview(ctx, args[0], index, !unlearned, flag)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "segment %d learned=%t learn_count=%d reviews=%d difficult=%t\n",
					seg.Index, seg.Learned, seg.LearnCount, seg.ReviewCount, seg.IsDifficult)
				return nil
			})
		},
	}
	reviewCmd.Flags().BoolVar(&unlearned, "unlearned", false, "record the segment as not yet learned")
	reviewCmd.Flags().BoolVar(&difficult, "difficult", false, "mark the segment difficult")
	reviewCmd.Flags().BoolVar(&easy, "easy", false, "clear the difficult mark")
	project.AddCommand(reviewCmd)

	project.AddCommand(&cobra.Command{
		Use:   "rename-speaker <project-id> <label> <name>",
		Short: "Set a speaker's display name",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				sp, err := app.StudyCLI.RenameSpeaker(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "speaker %s is now %q\n", sp.Label, sp.Name)
				return nil
			})
		},
	})

	project.AddCommand(&cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a local project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.StudyCLI.DeleteProject(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	})

	var exportPath string
	exportCmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Write a project snapshot document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SyncCLI.ExportProject(ctx, args[0])
				if err != nil {
					return err
				}
				if exportPath == "" || exportPath == "-" {
					_, err = cmd.OutOrStdout().Write(out.Content)
					return err
				}
				if err := os.WriteFile(exportPath, out.Content, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", exportPath, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", out.ProjectID, exportPath)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "output file (default stdout)")
	project.AddCommand(exportCmd)

	project.AddCommand(&cobra.Command{
		Use:   "import <file|->",
		Short: "Import or merge a project snapshot document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SyncCLI.ImportDocument(ctx, content)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", out.Action, out.ProjectID)
				for _, w := range out.Warnings {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
				}
				return nil
			})
		},
	})
	return project
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}

func newSyncCmd(flags *globalFlags) *cobra.Command {
	syncCmd := &cobra.Command{Use: "sync", Short: "Synchronize with the remote store"}

	var uploadOnly, downloadOnly bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Upload local projects and download remote ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			direction := "both"
			switch {
			case uploadOnly && downloadOnly:
				return fmt.Errorf("--upload-only and --download-only are mutually exclusive")
			case uploadOnly:
				direction = "upload"
			case downloadOnly:
				direction = "download"
			}
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SyncCLI.Run(ctx, direction)
				if err != nil {
					return err
				}
				printRun(cmd.OutOrStdout(), out, true)
				if len(out.Failures) > 0 {
					return fmt.Errorf("sync finished with %d error(s)", len(out.Failures))
				}
				return nil
			})
		},
	}
	runCmd.Flags().BoolVar(&uploadOnly, "upload-only", false, "only upload local projects")
	runCmd.Flags().BoolVar(&downloadOnly, "download-only", false, "only download remote projects")

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				runs, err := app.SyncCLI.History(ctx, limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sync runs recorded")
					return nil
				}
				for _, r := range runs {
					printRun(cmd.OutOrStdout(), r, false)
				}
				return nil
			})
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")

	syncCmd.AddCommand(runCmd, historyCmd)
	return syncCmd
}

func printRun(w io.Writer, r syncdto.RunOutput, verbose bool) {
	_, _ = fmt.Fprintf(w, "%s %s\n", r.FinishedAt.Local().Format("2006-01-02 15:04:05"), r.Message)
	if !verbose {
		return
	}
	for _, o := range r.Outcomes {
		_, _ = fmt.Fprintf(w, "  %-8s %-9s %s", o.Phase, o.State, o.ProjectKey)
		if o.Action != "" {
			_, _ = fmt.Fprintf(w, " (%s)", o.Action)
		}
		if o.Reason != "" {
			_, _ = fmt.Fprintf(w, ": %s", o.Reason)
		}
		_, _ = fmt.Fprintln(w)
		for _, warning := range o.Warnings {
			_, _ = fmt.Fprintf(w, "    warning: %s\n", warning)
		}
	}
	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(w, "  error [%s/%s] %s: %s\n", f.Phase, f.Kind, f.ProjectKey, f.Reason)
	}
}

func newPluginCmd(flags *globalFlags) *cobra.Command {
	plugin := &cobra.Command{Use: "plugin", Short: "Transport plugin operations"}
	plugin.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List plugin manifests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				plugins, err := app.PluginCLI.List(ctx)
				if err != nil {
					return err
				}
				if len(plugins) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no plugins configured")
					return nil
				}
				for _, p := range plugins {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s@%s enabled=%t binary=%s capabilities=%v\n", p.Name, p.Version, p.Enabled, p.Binary, p.Capabilities)
				}
				return nil
			})
		},
	})

	plugin.AddCommand(&cobra.Command{
		Use:     "check",
		Aliases: []string{"doctor"},
		Short:   "Validate plugin checksums and lifecycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				results, err := app.PluginCLI.Doctor(ctx)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no plugins configured")
					return nil
				}
				for _, r := range results {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s checksum=%t binary=%t lifecycle=%t", r.Name, r.ChecksumValid, r.BinaryReachable, r.LifecycleOK)
					if r.ReportedVersion != "" {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), " version=%s", r.ReportedVersion)
					}
					if r.Error != "" {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), " error=%q", r.Error)
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout())
				}
				return nil
			})
		},
	})
	return plugin
}
