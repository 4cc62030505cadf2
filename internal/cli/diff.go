package cli

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/paths"
	"github.com/lherron/stencil/internal/render"
)

var diffCmd = &cobra.Command{
	Use:   "diff [PATH...]",
	Short: "Show differences between project files and their templates",
	Long: `Show a unified diff between each managed file and what its template
renders to. Without PATH arguments every managed file is compared.

Examples:
  stencil diff
  stencil diff README.md Makefile
  stencil diff --project ~/src/api --name-only`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runDiff),
}

var (
	diffProject  string
	diffNameOnly bool
)

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVarP(&diffProject, "project", "p", "", "Project directory, name or UUID (default: current project)")
	diffCmd.Flags().BoolVar(&diffNameOnly, "name-only", false, "Show only names of changed files")
}

type diffEntry struct {
	Path    string `json:"path"`
	Missing bool   `json:"missing,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

func runDiff(app *appctx.App, cmd *cobra.Command, args []string) error {
	var projectArgs []string
	if diffProject != "" {
		projectArgs = []string{diffProject}
	}
	targets, err := resolveTargets(app, projectArgs, false)
	if err != nil {
		return err
	}
	dir := targets[0].Dir
	ctx := cmd.Context()

	set, err := app.Engine.Files(ctx, dir)
	if err != nil {
		return err
	}
	selected := set.Paths()
	if len(args) > 0 {
		selected = selected[:0:0]
		for _, arg := range args {
			rel, err := relTarget(dir, arg)
			if err != nil {
				return err
			}
			if _, ok := set[rel]; !ok {
				return fmt.Errorf("%s is not managed by the template", rel)
			}
			if !slices.Contains(selected, rel) {
				selected = append(selected, rel)
			}
		}
	}

	var entries []diffEntry
	for _, path := range selected {
		c, err := app.Engine.Compare(ctx, dir, path)
		if err != nil {
			return err
		}
		if !c.Changed() {
			continue
		}
		e := diffEntry{Path: path, Missing: !c.Exists}
		if !diffNameOnly {
			if e.Diff, err = render.UnifiedDiff(path, c.Local, c.Template.Content); err != nil {
				return err
			}
		}
		entries = append(entries, e)
	}

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(entries, nil, nil)
	}

	out := cmd.OutOrStdout()
	color := app.Color(out)
	for _, e := range entries {
		if diffNameOnly {
			fmt.Fprintln(out, e.Path)
			continue
		}
		fmt.Fprint(out, render.ColorDiff(e.Diff, color))
	}
	return nil
}

// relTarget interprets arg as a path relative to the working directory and
// returns it relative to the project root.
func relTarget(dir, arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", err
	}
	rel, err := paths.RelSlash(dir, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the project %s", arg, dir)
	}
	return rel, nil
}
