package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"eventflow/internal/model"
	"eventflow/internal/tracker"
	"eventflow/internal/view"
)

var (
	bold      = color.New(color.Bold).SprintFunc()
	completed = color.New(color.FgGreen).SprintFunc()
	overdue   = color.New(color.FgRed, color.Bold).SprintFunc()
	pending   = color.New(color.FgYellow).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

func newListCmd(a *app) *cobra.Command {
	var search, filter, from, to string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events sorted by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := view.ParseFilter(filter)
			if err != nil {
				return err
			}
			fromDate, err := parseDateFlag("from", from)
			if err != nil {
				return err
			}
			toDate, err := parseDateFlag("to", to)
			if err != nil {
				return err
			}

			tr, err := a.loadTracker(cmd.Context())
			if err != nil {
				return err
			}
			items := view.InRange(tr.View(search, f), fromDate, toDate)
			printEvents(cmd.OutOrStdout(), items)
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive text in title or description")
	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "One of all, completed, pending, upcoming")
	cmd.Flags().StringVar(&from, "from", "", "Earliest date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Latest date (YYYY-MM-DD)")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show event counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := a.loadTracker(cmd.Context())
			if err != nil {
				return err
			}
			records := tr.Snapshot()
			printStats(cmd.OutOrStdout(), tr.Stats(), view.Overdue(records, tr.Today()), tr.LastLoad())
			return nil
		},
	}
}

func parseDateFlag(name, value string) (model.Date, error) {
	if value == "" {
		return model.Date{}, nil
	}
	d, err := model.ParseDate(value)
	if err != nil {
		return model.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func printEvents(w io.Writer, items []view.Item) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w, faint("No events found"))
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	tbl.Wrap = true
	tbl.AddRow(bold("#"), bold("Date"), bold("Status"), bold("Title"), bold("Description"))
	for _, it := range items {
		tbl.AddRow(it.Position, it.Event.Date.String(), statusLabel(it.Status), it.Event.Title, it.Event.Description)
	}
	_, _ = fmt.Fprintln(w, tbl)
}

func printStats(w io.Writer, s view.Stats, overdueCount int, load tracker.LoadInfo) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold("Total"), s.Total)
	tbl.AddRow(bold("Completed"), completed(s.Completed))
	tbl.AddRow(bold("Pending"), pending(s.Pending))
	tbl.AddRow(bold("Upcoming"), s.Upcoming)
	tbl.AddRow(bold("Overdue"), overdue(overdueCount))
	tbl.AddRow(bold("Source"), faint(string(load.Source)))
	_, _ = fmt.Fprintln(w, tbl)
}

func statusLabel(s view.Status) string {
	switch s {
	case view.StatusCompleted:
		return completed(string(s))
	case view.StatusOverdue:
		return overdue(string(s))
	default:
		return pending(string(s))
	}
}
