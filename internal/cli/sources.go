package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/domain"
	"github.com/lherron/stencil/internal/source"
	"github.com/lherron/stencil/internal/store"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage template sources",
	Long:  `Commands for registering, listing and removing template sources.`,
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <name> <dir>",
	Short: "Register a template source directory",
	Long: `Registers a directory holding a stencil.json manifest under a short name.
Names are lowercase [a-z0-9_-].`,
	Args: cobra.ExactArgs(2),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runSourcesAdd),
}

var sourcesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered template sources",
	Long: `Lists registered sources. A source is flagged as changed when its
manifest differs from the one seen at the last sync.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runSourcesList),
}

var sourcesRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Unregister a template source",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runSourcesRm),
}

var sourcesRmForce bool

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesRmCmd)

	sourcesRmCmd.Flags().BoolVarP(&sourcesRmForce, "force", "f", false, "Remove even if projects still use the source")
}

func runSourcesAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	root, m, hash, err := source.Inspect(args[1])
	if err != nil {
		return err
	}
	for _, verr := range m.Validate() {
		app.Logger.Warn("manifest problem", "source", args[0], "error", verr)
	}
	src, err := app.Store.Sources.Add(store.SourceAddParams{
		Name:         args[0],
		Kind:         domain.SourceKindLocal,
		Location:     root,
		ManifestHash: hash,
	})
	if err != nil {
		return err
	}

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(src, nil, nil)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added source %s (%d templates) at %s\n", src.Name, len(m.Templates), src.Location)
	return nil
}

type sourceEntry struct {
	domain.Source
	Status string `json:"status"`
}

// sourceStatus compares a source's manifest on disk with the hash recorded
// at the last sync. It never records anything.
func sourceStatus(src domain.Source) string {
	_, _, hash, err := source.Inspect(src.Location)
	switch {
	case err != nil:
		return "missing"
	case src.ManifestHash == nil:
		return "unseen"
	case *src.ManifestHash != hash:
		return "changed"
	default:
		return "ok"
	}
}

func runSourcesList(app *appctx.App, cmd *cobra.Command, args []string) error {
	sources, err := app.Store.Sources.List()
	if err != nil {
		return err
	}

	entries := make([]sourceEntry, 0, len(sources))
	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		e := sourceEntry{Source: src, Status: sourceStatus(src)}
		entries = append(entries, e)
		def := ""
		if src.Name == app.Config.DefaultSource {
			def = "*"
		}
		rows = append(rows, []string{src.Name + def, e.Status, string(src.Kind), src.Location})
	}

	r, err := app.Renderer(cmd, 1)
	if err != nil {
		return err
	}
	return r.Render(entries, []string{"NAME", "STATUS", "KIND", "LOCATION"}, rows)
}

func runSourcesRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	if err := app.Store.Sources.Remove(args[0], sourcesRmForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Removed source %s\n", args[0])
	return nil
}
