package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
)

var filesCmd = &cobra.Command{
	Use:   "files [PROJECT]",
	Short: "List the files a project's template produces",
	Long: `List every file the project's template chain produces for the
project's recorded answers, with the template that owns each file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runFiles),
}

func init() {
	rootCmd.AddCommand(filesCmd)
}

type fileEntry struct {
	Path     string `json:"path"`
	Template string `json:"template"`
	Source   string `json:"source"`
}

func runFiles(app *appctx.App, cmd *cobra.Command, args []string) error {
	targets, err := resolveTargets(app, args, false)
	if err != nil {
		return err
	}
	set, err := app.Engine.Files(cmd.Context(), targets[0].Dir)
	if err != nil {
		return err
	}

	entries := make([]fileEntry, 0, len(set))
	rows := make([][]string, 0, len(set))
	for _, path := range set.Paths() {
		e := set[path]
		entries = append(entries, fileEntry{Path: path, Template: e.Template, Source: e.Source})
		rows = append(rows, []string{path, e.Template, e.Source})
	}

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		return err
	}
	return r.Render(entries, []string{"PATH", "TEMPLATE", "SOURCE"}, rows)
}
