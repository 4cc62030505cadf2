package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/project"
	"github.com/lherron/stencil/internal/render"
	"github.com/lherron/stencil/internal/runner"
)

var newCmd = &cobra.Command{
	Use:   "new <template> <name>",
	Short: "Create a project from a template",
	Long: `Create a project from a template.

Prompts declared by the template and its parents are asked on the terminal
unless answered with --set. Post-create commands run in the new project
unless --no-commands is given.

Examples:
  stencil new cli my-tool                     # default source, ./my-tool
  stencil new cli my-tool --source acme       # registered source
  stencil new cli my-tool --source ./tmpl     # source by path
  stencil new cli my-tool --set ci=false --yes`,
	Args: cobra.ExactArgs(2),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runNew),
}

var (
	newSource     string
	newDir        string
	newSets       []string
	newNoCommands bool
	newForce      bool
	newYes        bool
)

func init() {
	rootCmd.AddCommand(newCmd)

	newCmd.Flags().StringVarP(&newSource, "source", "s", "", "Template source name or directory (default from config)")
	newCmd.Flags().StringVarP(&newDir, "dir", "d", "", "Target directory (default ./<name>)")
	newCmd.Flags().StringArrayVar(&newSets, "set", nil, "Answer a prompt: name=value (repeatable)")
	newCmd.Flags().BoolVar(&newNoCommands, "no-commands", false, "Skip post-create commands")
	newCmd.Flags().BoolVar(&newForce, "force", false, "Generate into a non-empty directory, replacing clashing files")
	newCmd.Flags().BoolVarP(&newYes, "yes", "y", false, "Accept defaults for unanswered prompts")
}

func runNew(app *appctx.App, cmd *cobra.Command, args []string) error {
	src := newSource
	if src == "" {
		src = app.Config.DefaultSource
	}
	if src == "" {
		return fmt.Errorf("no template source given (use --source or set default_source)")
	}

	preset, err := asker(app, cmd, newSets, newYes)
	if err != nil {
		return err
	}

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		return err
	}
	// Command output would corrupt structured output on stdout.
	var stream io.Writer = cmd.OutOrStdout()
	if r.Structured() {
		stream = cmd.ErrOrStderr()
	}

	creator := &project.Creator{
		Engine:    app.Engine,
		Sources:   app.Sources,
		Runner:    runner.Shell{},
		Registrar: app.Store.Projects,
		Logger:    app.Logger,
		Now:       time.Now,
	}
	result, err := creator.Create(cmd.Context(), project.Params{
		Name:        args[1],
		Dir:         newDir,
		Template:    args[0],
		Source:      src,
		Asker:       preset,
		RunCommands: app.Config.RunCommands && !newNoCommands,
		Force:       newForce,
		Stream:      stream,
	})
	if result == nil {
		return err
	}
	if _, cerr := app.Sources.CheckChanged(cmd.Context(), result.Source); cerr != nil {
		app.Logger.Warn("failed to record source manifest hash", "source", result.Source, "error", cerr)
	}
	if unused := preset.Unused(result.Prompts); len(unused) > 0 {
		app.Logger.Warn("--set values match no prompt", "names", unused)
	}

	if r.Structured() {
		if rerr := r.Render(result, nil, nil); rerr != nil {
			return rerr
		}
		return err
	}

	printCreated(cmd.OutOrStdout(), result, app.Color(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	if cmdErr := runner.Summary(result.Commands); cmdErr != nil {
		return exitError(1, cmdErr)
	}
	return nil
}

func printCreated(w io.Writer, res *project.Result, color bool) {
	fmt.Fprintf(w, "%s %s from %s (%s)\n", render.Status("created", color), res.Dir, res.Template, res.Source)
	for _, f := range res.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	for _, c := range res.Commands {
		status := "ok"
		if c.Failed() {
			status = "failed"
		}
		fmt.Fprintf(w, "%s %s\n", render.Status(status, color), c.Name)
	}
	if len(res.Repaired) > 0 {
		fmt.Fprintf(w, "refreshed %d file(s) changed by commands\n", len(res.Repaired))
	}
	for _, warn := range res.Report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}
