package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/domain"
	"github.com/lherron/stencil/internal/lockfile"
	"github.com/lherron/stencil/internal/store"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage registered projects",
	Long: `Commands for the registry of generated projects. Registered projects
can be synced together with 'stencil sync --all'.`,
}

var projectsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered projects",
	Long: `Lists registered projects.

Examples:
  stencil projects list
  stencil projects list --json
  stencil projects list --porcelain | cut -f2`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runProjectsList),
}

var projectsAddCmd = &cobra.Command{
	Use:   "add <dir>",
	Short: "Register an existing generated project",
	Long:  `Registers a directory that already holds a .stencil.lock, for example one created on another machine.`,
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runProjectsAdd),
}

var projectsRmCmd = &cobra.Command{
	Use:   "rm <project>",
	Short: "Unregister a project",
	Long:  `Removes a project from the registry by name, path or UUID. Files on disk are left alone.`,
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runProjectsRm),
}

var projectsAddName string

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsAddCmd)
	projectsCmd.AddCommand(projectsRmCmd)

	projectsAddCmd.Flags().StringVar(&projectsAddName, "name", "", "Registry name (default: directory name)")
}

func runProjectsList(app *appctx.App, cmd *cobra.Command, args []string) error {
	projects, err := app.Store.Projects.List()
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []domain.Project{}
	}

	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		synced := "never"
		if p.SyncedAt != nil {
			synced = p.SyncedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{p.Name, p.Path, p.Template, p.SourceName, synced})
	}

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		return err
	}
	return r.Render(projects, []string{"NAME", "PATH", "TEMPLATE", "SOURCE", "SYNCED"}, rows)
}

func runProjectsAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	lock, err := lockfile.Load(dir)
	if err != nil {
		return err
	}
	created, err := lock.CreatedAt()
	if err != nil {
		return err
	}

	p, err := app.Store.Projects.Register(store.ProjectRegisterParams{
		Name:       projectsAddName,
		Path:       dir,
		Template:   lock.Template,
		SourceName: lock.Source,
		Created:    created,
	})
	if err != nil {
		return err
	}

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(p, nil, nil)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s from %s)\n", p.Name, p.Template, p.SourceName)
	return nil
}

func runProjectsRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	p, err := app.Store.Projects.Find(args[0])
	if err != nil {
		return err
	}
	if err := app.Store.Projects.Remove(p.UUID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Unregistered %s (%s)\n", p.Name, p.Path)
	return nil
}
