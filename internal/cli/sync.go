package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/reconcile"
	"github.com/lherron/stencil/internal/render"
)

var syncCmd = &cobra.Command{
	Use:   "sync [PROJECT...]",
	Short: "Bring projects up to date with their templates",
	Long: `Bring one or more generated projects up to date with their templates.

A PROJECT is a directory or a registered project's name, path or UUID.
Without arguments the project enclosing the working directory is synced.

Files whose template changed are rewritten unless they were edited
locally; such conflicts are asked about on a terminal, and otherwise left
alone unless --replace is given. Files the template no longer produces are
reported, and deleted only after confirmation or with --delete-orphans.

Examples:
  stencil sync                       # current project
  stencil sync --all --dry-run       # preview every registered project
  stencil sync api web --replace     # overwrite local edits
  stencil sync --only README.md`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runSync),
}

var (
	syncAll           bool
	syncDryRun        bool
	syncYes           bool
	syncReplace       bool
	syncSkipConflicts bool
	syncDeleteOrphans bool
	syncKeepOrphans   bool
	syncOnly          []string
	syncSets          []string
	syncJobs          int
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVarP(&syncAll, "all", "a", false, "Sync every registered project")
	syncCmd.Flags().BoolVarP(&syncDryRun, "dry-run", "n", false, "Show what would change without writing")
	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false, "Never prompt; use defaults and leave conflicts alone")
	syncCmd.Flags().BoolVar(&syncReplace, "replace", false, "Overwrite locally modified files with the template")
	syncCmd.Flags().BoolVar(&syncSkipConflicts, "skip-conflicts", false, "Keep local versions of conflicting files")
	syncCmd.Flags().BoolVar(&syncDeleteOrphans, "delete-orphans", false, "Delete files no longer produced by the template")
	syncCmd.Flags().BoolVar(&syncKeepOrphans, "keep-orphans", false, "Never delete orphaned files")
	syncCmd.Flags().StringArrayVar(&syncOnly, "only", nil, "Sync only this path (repeatable)")
	syncCmd.Flags().StringArrayVar(&syncSets, "set", nil, "Answer a new prompt: name=value (repeatable)")
	syncCmd.Flags().IntVarP(&syncJobs, "jobs", "j", 1, "Projects to sync in parallel (non-interactive only)")
}

// syncOptions maps flags onto reconciliation collaborators.
func syncOptions(app *appctx.App, cmd *cobra.Command) (reconcile.Options, error) {
	if syncReplace && syncSkipConflicts {
		return reconcile.Options{}, fmt.Errorf("--replace and --skip-conflicts are mutually exclusive")
	}
	if syncDeleteOrphans && syncKeepOrphans {
		return reconcile.Options{}, fmt.Errorf("--delete-orphans and --keep-orphans are mutually exclusive")
	}

	preset, err := asker(app, cmd, syncSets, syncYes)
	if err != nil {
		return reconcile.Options{}, err
	}
	opts := reconcile.Options{
		Preview: syncDryRun,
		Asker:   preset,
		Only:    syncOnly,
		Jobs:    syncJobs,
	}

	tty := interactive(cmd, syncYes)
	if tty && opts.Jobs > 1 {
		app.Logger.Debug("interactive sync runs one project at a time", "jobs", opts.Jobs)
		opts.Jobs = 1
	}
	switch {
	case syncReplace:
		opts.Resolver = reconcile.Policy(reconcile.Replace)
	case syncSkipConflicts:
		opts.Resolver = reconcile.Policy(reconcile.Skip)
	case tty:
		opts.Resolver = terminal(app, cmd)
	}
	switch {
	case syncDeleteOrphans:
		opts.Orphans = reconcile.AlwaysDelete{}
	case syncKeepOrphans:
	case tty:
		opts.Orphans = terminal(app, cmd)
	}
	return opts, nil
}

func runSync(app *appctx.App, cmd *cobra.Command, args []string) error {
	targets, err := resolveTargets(app, args, syncAll)
	if err != nil {
		return err
	}
	opts, err := syncOptions(app, cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	reports := app.Engine.SyncAll(ctx, targetDirs(targets), opts)

	failed := 0
	checked := map[string]bool{}
	for i, r := range reports {
		if r.Error != "" {
			failed++
			continue
		}
		if opts.Preview {
			continue
		}
		if p := targets[i].Project; p != nil {
			if err := app.Store.Projects.MarkSynced(p.UUID, time.Now(), countsByStatus(r)); err != nil {
				app.Logger.Warn("failed to record sync", "project", p.Name, "error", err)
			}
		}
		if r.Source != "" && !checked[r.Source] {
			checked[r.Source] = true
			changed, err := app.Sources.CheckChanged(ctx, r.Source)
			if err != nil {
				app.Logger.Warn("failed to record source manifest hash", "source", r.Source, "error", err)
			} else if changed {
				app.Logger.Info("template source changed since last sync", "source", r.Source)
			}
		}
	}

	if err := renderReports(app, cmd, reports, true); err != nil {
		return err
	}
	if failed > 0 {
		return exitError(1, fmt.Errorf("%d of %d project(s) failed to sync", failed, len(reports)))
	}
	return nil
}

// renderReports prints reconciliation reports: structured formats get the
// reports themselves, tables get one row per file.
func renderReports(app *appctx.App, cmd *cobra.Command, reports []*reconcile.Report, changedOnly bool) error {
	headers, rows, statusCol := fileRows(reports, changedOnly)
	r, err := app.Renderer(cmd, statusCol)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(reports, nil, nil)
	}
	if len(rows) > 0 {
		if err := r.Render(nil, headers, rows); err != nil {
			return err
		}
	}
	if r.Format() == render.FormatTable && !porcelain(cmd) {
		printSummaries(cmd.OutOrStdout(), reports, app.Color(cmd.OutOrStdout()))
	}
	return nil
}

func printSummaries(w io.Writer, reports []*reconcile.Report, color bool) {
	for _, r := range reports {
		prefix := ""
		if r.Preview {
			prefix = "(dry run) "
		}
		if r.Error != "" {
			fmt.Fprintf(w, "%s%s: %s\n", prefix, r.Dir, render.Status("error", color))
			continue
		}
		fmt.Fprintf(w, "%s%s: %s\n", prefix, r.Dir, summarize(r))
		for _, p := range r.NewPrompts {
			fmt.Fprintf(w, "  new prompt answered: %s\n", p)
		}
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warn)
		}
	}
}
