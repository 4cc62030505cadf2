package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [SOURCE]",
	Short: "List the templates of a source",
	Long: `List the templates a source provides. SOURCE is a registered source
name or a directory; it defaults to the configured default source.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runTemplates),
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}

type templateEntry struct {
	Name        string   `json:"name"`
	Extends     string   `json:"extends,omitempty"`
	Description string   `json:"description,omitempty"`
	Prompts     []string `json:"prompts,omitempty"`
}

func runTemplates(app *appctx.App, cmd *cobra.Command, args []string) error {
	name := app.Config.DefaultSource
	if len(args) == 1 {
		name = args[0]
	}
	if name == "" {
		return fmt.Errorf("no source given and no default_source configured")
	}
	loaded, err := app.Sources.Load(cmd.Context(), name)
	if err != nil {
		return err
	}

	m := loaded.Manifest
	var entries []templateEntry
	var rows [][]string
	for _, tn := range m.TemplateNames() {
		e := templateEntry{Name: tn}
		if t := m.Template(tn); t != nil {
			e.Extends = t.Extends
			e.Description = t.Description
		}
		chain, _ := m.Chain(tn)
		for _, p := range m.Prompts(chain) {
			e.Prompts = append(e.Prompts, p.Name)
		}
		entries = append(entries, e)
		rows = append(rows, []string{e.Name, e.Extends, strconv.Itoa(len(e.Prompts)), e.Description})
	}

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		return err
	}
	return r.Render(entries, []string{"NAME", "EXTENDS", "PROMPTS", "DESCRIPTION"}, rows)
}
