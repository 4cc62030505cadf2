package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/reconcile"
)

var repairCmd = &cobra.Command{
	Use:   "repair [PROJECT...]",
	Short: "Accept the current content of managed files",
	Long: `Record the current content of every managed file in the lock, so that
files changed outside stencil (formatters, generators) stop showing up as
local edits. Files missing on disk keep their entry.`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runRepair),
}

var repairAll bool

func init() {
	rootCmd.AddCommand(repairCmd)
	repairCmd.Flags().BoolVarP(&repairAll, "all", "a", false, "Repair every registered project")
}

type repairEntry struct {
	Dir     string   `json:"dir"`
	Changed []string `json:"changed"`
}

func runRepair(app *appctx.App, cmd *cobra.Command, args []string) error {
	targets, err := resolveTargets(app, args, repairAll)
	if err != nil {
		return err
	}

	entries := make([]repairEntry, 0, len(targets))
	var rows [][]string
	for _, t := range targets {
		changed, err := reconcile.Repair(t.Dir)
		if err != nil {
			return fmt.Errorf("%s: %w", t.Dir, err)
		}
		if changed == nil {
			changed = []string{}
		}
		entries = append(entries, repairEntry{Dir: t.Dir, Changed: changed})
		for _, path := range changed {
			rows = append(rows, []string{t.Dir, path})
		}
		app.Logger.Debug("lock repaired", "dir", t.Dir, "changed", len(changed))
	}

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		return err
	}
	if r.Structured() || len(rows) > 0 {
		return r.Render(entries, []string{"PROJECT", "PATH"}, rows)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "All recorded hashes match the files on disk")
	return nil
}
