package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/db"
	"github.com/lherron/stencil/internal/domain"
	"github.com/lherron/stencil/internal/lockfile"
	"github.com/lherron/stencil/internal/manifest"
	"github.com/lherron/stencil/internal/source"
	"github.com/lherron/stencil/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check registry, sources and projects for problems",
	Long: `Performs health checks on the registry database, every registered
template source (manifest validity, extends cycles, prompt defaults) and
every registered project (lock file present and parseable).

With --fix, pending registry migrations are applied.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.NoDB(), runDoctor),
}

var (
	doctorFix     bool
	doctorVerbose bool
)

const (
	checkOK      = "ok"
	checkWarning = "warning"
	checkError   = "error"
)

type checkResult struct {
	Category string   `json:"category"`
	Name     string   `json:"name"`
	Status   string   `json:"status"` // "ok", "warning", "error"
	Message  string   `json:"message,omitempty"`
	Details  []string `json:"details,omitempty"`
}

type doctorReport struct {
	Version       string        `json:"version"`
	Home          string        `json:"home"`
	DBPath        string        `json:"db_path"`
	Checks        []checkResult `json:"checks"`
	Warnings      int           `json:"warnings"`
	Errors        int           `json:"errors"`
	OverallStatus string        `json:"overall_status"`
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Apply pending registry migrations")
	doctorCmd.Flags().BoolVar(&doctorVerbose, "details", false, "Show details for every check")
}

func runDoctor(app *appctx.App, cmd *cobra.Command, args []string) error {
	cfg := app.Config
	report := &doctorReport{
		Version:       Version,
		Home:          cfg.Home,
		DBPath:        cfg.DBPath,
		Checks:        []checkResult{},
		OverallStatus: checkOK,
	}

	_, statErr := os.Stat(cfg.DBPath)
	switch {
	case statErr == nil || doctorFix:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			report.add(checkResult{Category: "Registry", Name: "registry_open", Status: checkError,
				Message: fmt.Sprintf("Failed to open registry: %v", err)})
			break
		}
		defer database.Close()

		report.Checks = append(report.Checks, checkMigrations(database, doctorFix)...)
		if database.CheckSchema() == nil {
			st := store.New(database)
			report.Checks = append(report.Checks, checkSources(st, cfg.DefaultSource)...)
			report.Checks = append(report.Checks, checkProjects(st)...)
		}
	case errors.Is(statErr, os.ErrNotExist):
		report.add(checkResult{Category: "Registry", Name: "registry_file", Status: checkWarning,
			Message: fmt.Sprintf("Registry not created yet: %s", cfg.DBPath),
			Details: []string{"It is created by the first 'stencil new' or 'stencil sources add'"}})
	default:
		report.add(checkResult{Category: "Registry", Name: "registry_file", Status: checkError,
			Message: fmt.Sprintf("Registry not accessible: %v", statErr)})
	}

	report.tally()

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		return err
	}
	if r.Structured() {
		if err := r.Render(report, nil, nil); err != nil {
			return err
		}
	} else {
		printHumanReport(cmd.OutOrStdout(), report)
	}

	if report.Errors > 0 {
		return exitError(1, fmt.Errorf("doctor found %d error(s)", report.Errors))
	}
	return nil
}

func (r *doctorReport) add(c checkResult) {
	r.Checks = append(r.Checks, c)
}

func (r *doctorReport) tally() {
	r.Warnings, r.Errors = 0, 0
	for _, check := range r.Checks {
		switch check.Status {
		case checkWarning:
			r.Warnings++
		case checkError:
			r.Errors++
		}
	}
	switch {
	case r.Errors > 0:
		r.OverallStatus = checkError
	case r.Warnings > 0:
		r.OverallStatus = checkWarning
	default:
		r.OverallStatus = checkOK
	}
}

func checkMigrations(database *db.DB, fix bool) []checkResult {
	if fix {
		applied, err := database.Migrate()
		if err != nil {
			return []checkResult{{Category: "Registry", Name: "migrations", Status: checkError,
				Message: fmt.Sprintf("Migration failed: %v", err)}}
		}
		if len(applied) > 0 {
			return []checkResult{{Category: "Registry", Name: "migrations", Status: checkOK,
				Message: fmt.Sprintf("Applied %d migration(s)", len(applied)), Details: applied}}
		}
	}

	schema, err := database.Schema()
	if err != nil {
		return []checkResult{{Category: "Registry", Name: "migrations", Status: checkError,
			Message: err.Error()}}
	}
	if !schema.UpToDate() {
		return []checkResult{{Category: "Registry", Name: "migrations", Status: checkError,
			Message: fmt.Sprintf("%d pending migration(s) after %s", len(schema.Pending), schema.Current()),
			Details: append([]string{"Run 'stencil doctor --fix' to apply"}, schema.Pending...)}}
	}
	return []checkResult{{Category: "Registry", Name: "migrations", Status: checkOK,
		Message: fmt.Sprintf("Schema up to date (%s)", schema.Current())}}
}

func checkSources(st *store.Store, defaultSource string) []checkResult {
	sources, err := st.Sources.List()
	if err != nil {
		return []checkResult{{Category: "Sources", Name: "sources", Status: checkError, Message: err.Error()}}
	}

	var results []checkResult
	if defaultSource != "" && !source.IsPathRef(defaultSource) {
		if _, err := st.Sources.Get(defaultSource); err != nil {
			results = append(results, checkResult{Category: "Sources", Name: "default_source", Status: checkWarning,
				Message: fmt.Sprintf("Default source %q is not registered", defaultSource)})
		}
	}

	for _, src := range sources {
		results = append(results, checkSource(src))
	}
	if len(sources) == 0 {
		results = append(results, checkResult{Category: "Sources", Name: "sources", Status: checkOK,
			Message: "No sources registered"})
	}
	return results
}

func checkSource(src domain.Source) checkResult {
	c := checkResult{Category: "Sources", Name: "source:" + src.Name}
	_, m, _, err := source.Inspect(src.Location)
	if err != nil {
		c.Status = checkError
		c.Message = fmt.Sprintf("%s: %v", src.Name, err)
		return c
	}
	problems := m.Validate()
	if len(problems) == 0 {
		c.Status = checkOK
		c.Message = fmt.Sprintf("%s: %d template(s)", src.Name, len(m.Templates))
		return c
	}

	c.Status = checkWarning
	for _, p := range problems {
		var cycle *manifest.CycleError
		if errors.As(p, &cycle) {
			c.Status = checkError
		}
		c.Details = append(c.Details, p.Error())
	}
	c.Message = fmt.Sprintf("%s: %d manifest problem(s)", src.Name, len(problems))
	return c
}

func checkProjects(st *store.Store) []checkResult {
	projects, err := st.Projects.List()
	if err != nil {
		return []checkResult{{Category: "Projects", Name: "projects", Status: checkError, Message: err.Error()}}
	}
	if len(projects) == 0 {
		return []checkResult{{Category: "Projects", Name: "projects", Status: checkOK,
			Message: "No projects registered"}}
	}

	var results []checkResult
	for _, p := range projects {
		c := checkResult{Category: "Projects", Name: "project:" + p.Name}
		lock, err := lockfile.Load(p.Path)
		switch {
		case errors.Is(err, lockfile.ErrNoLock):
			c.Status = checkError
			c.Message = fmt.Sprintf("%s: no lock file at %s", p.Name, p.Path)
			c.Details = []string{fmt.Sprintf("Run 'stencil projects rm %s' if the project was deleted", p.Name)}
		case err != nil:
			c.Status = checkError
			c.Message = fmt.Sprintf("%s: %v", p.Name, err)
		case lock.Template != p.Template:
			c.Status = checkWarning
			c.Message = fmt.Sprintf("%s: lock names template %q, registry %q", p.Name, lock.Template, p.Template)
		default:
			c.Status = checkOK
			c.Message = fmt.Sprintf("%s: %d managed file(s)", p.Name, len(lock.Synced))
		}
		results = append(results, c)
	}
	return results
}

func printHumanReport(w io.Writer, report *doctorReport) {
	fmt.Fprintf(w, "stencil doctor %s\n\n", report.Version)
	fmt.Fprintf(w, "Home:     %s\n", report.Home)
	fmt.Fprintf(w, "Registry: %s\n\n", report.DBPath)

	for _, category := range []string{"Registry", "Sources", "Projects"} {
		var checks []checkResult
		for _, check := range report.Checks {
			if check.Category == category {
				checks = append(checks, check)
			}
		}
		if len(checks) == 0 {
			continue
		}

		fmt.Fprintf(w, "%s\n", category)
		for _, check := range checks {
			icon := "✓"
			if check.Status == checkWarning {
				icon = "⚠"
			} else if check.Status == checkError {
				icon = "✗"
			}

			fmt.Fprintf(w, "  %s %s\n", icon, check.Message)

			if doctorVerbose || check.Status != checkOK {
				for _, detail := range check.Details {
					fmt.Fprintf(w, "      %s\n", detail)
				}
			}
		}
		fmt.Fprintln(w)
	}

	if report.Errors > 0 {
		fmt.Fprintf(w, "Summary: %d error(s), %d warning(s)\n", report.Errors, report.Warnings)
	} else if report.Warnings > 0 {
		fmt.Fprintf(w, "Summary: %d warning(s)\n", report.Warnings)
	} else {
		fmt.Fprintf(w, "Summary: All checks passed ✓\n")
	}
}
