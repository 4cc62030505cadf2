package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/reconcile"
)

var statusCmd = &cobra.Command{
	Use:   "status [PROJECT...]",
	Short: "Show how projects differ from their templates",
	Long: `Show what a sync would do, without changing anything.

New prompts are answered with their defaults for the preview and are not
recorded.

Examples:
  stencil status                 # current project
  stencil status --all --check   # fail if any registered project is stale`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runStatus),
}

var (
	statusAll     bool
	statusLong bool
	statusCheck   bool
	statusJobs    int
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusAll, "all", "a", false, "Check every registered project")
	statusCmd.Flags().BoolVarP(&statusLong, "long", "l", false, "Include up-to-date files")
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "Exit with status 2 when any project is out of date")
	statusCmd.Flags().IntVarP(&statusJobs, "jobs", "j", 4, "Projects to check in parallel")
}

func runStatus(app *appctx.App, cmd *cobra.Command, args []string) error {
	targets, err := resolveTargets(app, args, statusAll)
	if err != nil {
		return err
	}
	reports := app.Engine.SyncAll(cmd.Context(), targetDirs(targets), reconcile.Options{Preview: true, Jobs: statusJobs})

	if err := renderReports(app, cmd, reports, !statusLong); err != nil {
		return err
	}

	failed, stale := 0, 0
	for _, r := range reports {
		switch {
		case r.Error != "":
			failed++
		case !r.Clean():
			stale++
		}
	}
	if failed > 0 {
		return exitError(1, fmt.Errorf("%d project(s) could not be checked", failed))
	}
	if statusCheck && stale > 0 {
		return exitError(2, fmt.Errorf("%d project(s) out of date", stale))
	}
	return nil
}
