package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/prompt"
	"github.com/lherron/stencil/internal/reconcile"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

func porcelain(cmd *cobra.Command) bool {
	f := cmd.Flag("porcelain")
	return f != nil && f.Value.String() == "true"
}

// interactive reports whether the command may ask questions on stdin.
func interactive(cmd *cobra.Command, yes bool) bool {
	if yes {
		return false
	}
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && prompt.IsInteractive(f)
}

func terminal(app *appctx.App, cmd *cobra.Command) *prompt.Terminal {
	return prompt.NewTerminal(cmd.InOrStdin(), cmd.ErrOrStderr(), app.Color(cmd.ErrOrStderr()))
}

// asker answers prompts from --set values first, then the terminal when
// interactive, then defaults.
func asker(app *appctx.App, cmd *cobra.Command, sets []string, yes bool) (prompt.Preset, error) {
	values, err := prompt.ParseSets(sets)
	if err != nil {
		return prompt.Preset{}, err
	}
	preset := prompt.Preset{Values: values}
	if interactive(cmd, yes) {
		preset.Fallback = terminal(app, cmd)
	}
	return preset, nil
}

// countsByStatus summarizes a report for the registry.
func countsByStatus(r *reconcile.Report) map[string]int {
	counts := map[string]int{}
	for _, f := range r.Files {
		counts[string(f.Status)]++
	}
	if n := len(r.Removed); n > 0 {
		counts["removed"] = n
	}
	return counts
}

func summarize(r *reconcile.Report) string {
	statuses := []reconcile.Status{
		reconcile.StatusUpdated,
		reconcile.StatusUpToDate,
		reconcile.StatusConflict,
		reconcile.StatusSkipped,
		reconcile.StatusError,
	}
	var parts []string
	for _, s := range statuses {
		if n := r.Count(s); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if n := len(r.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	} else if n := len(r.Orphans); n > 0 {
		parts = append(parts, fmt.Sprintf("%d orphaned", n))
	}
	if len(parts) == 0 {
		return "nothing to do"
	}
	return strings.Join(parts, ", ")
}

// fileRows flattens reports into table rows and returns the index of the
// status column. The project column is only included when more than one
// project was reconciled.
func fileRows(reports []*reconcile.Report, changedOnly bool) ([]string, [][]string, int) {
	multi := len(reports) > 1
	headers := []string{"STATUS", "PATH", "MESSAGE"}
	statusCol := 0
	if multi {
		headers = append([]string{"PROJECT"}, headers...)
		statusCol = 1
	}
	var rows [][]string
	add := func(r *reconcile.Report, cells ...string) {
		if multi {
			cells = append([]string{r.Dir}, cells...)
		}
		rows = append(rows, cells)
	}
	for _, r := range reports {
		if r.Error != "" {
			add(r, string(reconcile.StatusError), ".", r.Error)
			continue
		}
		for _, f := range r.Files {
			if changedOnly && f.Status == reconcile.StatusUpToDate && f.Message == "" {
				continue
			}
			add(r, string(f.Status), f.Path, f.Message)
		}
		for _, o := range r.Orphans {
			if slices.Contains(r.Removed, o) {
				add(r, "removed", o, "no longer in template")
			} else {
				add(r, "orphaned", o, "no longer in template")
			}
		}
	}
	return headers, rows, statusCol
}
