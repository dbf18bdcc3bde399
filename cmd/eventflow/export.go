package main

import (
	"os"

	"github.com/spf13/cobra"

	"eventflow/internal/ics"
	appLog "eventflow/internal/log"
)

func newExportCmd(a *app) *cobra.Command {
	var out, name string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all events as an ICS calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := a.loadTracker(cmd.Context())
			if err != nil {
				return err
			}
			records := tr.Snapshot()
			body := ics.Export(records, ics.ExportOptions{Name: name})

			if out == "" || out == "-" {
				_, err := cmd.OutOrStdout().Write([]byte(body))
				return err
			}
			if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
				return err
			}
			appLog.Info("export written", "path", out, "events", len(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "-", "Output file, - for stdout")
	cmd.Flags().StringVar(&name, "name", "eventflow", "Calendar name (X-WR-CALNAME)")
	return cmd
}
