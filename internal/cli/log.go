package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/domain"
	"github.com/lherron/stencil/internal/events"
)

var logCmd = &cobra.Command{
	Use:   "log [PROJECT|SOURCE]",
	Short: "Show registry history",
	Long: `Show the registry event log: projects registered, created and synced,
sources added, removed and changed. With an argument, only events for that
project (name, path or UUID) or source name are shown.

Examples:
  stencil log                        # everything, newest first
  stencil log my-tool --since 2026-01-01
  stencil log acme --oneline`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runLog),
}

var (
	logSince   string
	logOneline bool
	logLimit   int
)

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().StringVar(&logSince, "since", "", "Show events since date/time (YYYY-MM-DD or RFC3339)")
	logCmd.Flags().BoolVar(&logOneline, "oneline", false, "Compact one-line format")
	logCmd.Flags().IntVar(&logLimit, "limit", 50, "Limit number of events (0 = unlimited)")
}

func runLog(app *appctx.App, cmd *cobra.Command, args []string) error {
	filter := events.Filter{Limit: logLimit}
	if logSince != "" {
		since, err := parseSince(logSince)
		if err != nil {
			return err
		}
		filter.Since = since
	}
	if len(args) == 1 {
		uuid, rt, err := resolveResource(app, args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve resource: %w", err)
		}
		filter.ResourceUUID, filter.ResourceType = uuid, rt
	}

	evs, err := events.List(app.DB.DB, filter)
	if err != nil {
		return fmt.Errorf("failed to query event log: %w", err)
	}
	if evs == nil {
		evs = []domain.Event{}
	}

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		return err
	}
	if r.Structured() {
		return r.Render(evs, nil, nil)
	}
	if logOneline {
		renderEventsOneline(cmd.OutOrStdout(), evs)
		return nil
	}
	renderEventsDetailed(cmd.OutOrStdout(), evs)
	return nil
}

// resolveResource finds a registered project first, then a source.
func resolveResource(app *appctx.App, ref string) (string, domain.ResourceType, error) {
	if p, err := app.Store.Projects.Find(ref); err == nil {
		return p.UUID, domain.ResourceProject, nil
	}
	src, err := app.Store.Sources.Get(ref)
	if err != nil {
		return "", "", fmt.Errorf("no project or source named %q", ref)
	}
	return src.UUID, domain.ResourceSource, nil
}

func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q (want YYYY-MM-DD or RFC3339)", s)
	}
	return t, nil
}

func renderEventsOneline(w io.Writer, evs []domain.Event) {
	for _, e := range evs {
		fmt.Fprintf(w, "%d %s %s %s\n", e.ID, e.Timestamp.Local().Format("2006-01-02 15:04"), e.EventType, payloadSummary(e))
	}
}

func renderEventsDetailed(w io.Writer, evs []domain.Event) {
	for i, e := range evs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "event %d\n", e.ID)
		fmt.Fprintf(w, "Date:     %s\n", e.Timestamp.Local().Format(time.RFC1123))
		fmt.Fprintf(w, "Type:     %s\n", e.EventType)
		if e.ResourceUUID != nil {
			fmt.Fprintf(w, "Resource: %s %s\n", e.ResourceType, *e.ResourceUUID)
		}
		fields := eventFields(e)
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			fmt.Fprintf(w, "    %s: %v\n", k, fields[k])
		}
	}
}

func payloadSummary(e domain.Event) string {
	fields := eventFields(e)
	parts := make([]string, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

// eventFields decodes the payload, keeping undecodable payloads verbatim.
func eventFields(e domain.Event) map[string]any {
	fields, err := e.PayloadMap()
	if err != nil {
		return map[string]any{"payload": *e.Payload}
	}
	return fields
}
