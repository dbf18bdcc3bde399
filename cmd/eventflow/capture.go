package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"eventflow/internal/capture"
	"eventflow/internal/scheduler"
)

func newCaptureCmd(a *app) *cobra.Command {
	var (
		url, out      string
		width, height int
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the web UI of a running server to PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := capture.CaptureOptions{
				URL:        url,
				OutputPath: out,
				Width:      width,
				Height:     height,
				Timeout:    timeout,
			}
			if opts.URL == "" {
				opts.URL = pageURL(a.cfg.Listen)
			}
			if opts.OutputPath == "" {
				opts.OutputPath = filepath.Join(a.cfg.Snapshot.Dir, scheduler.PreviewFile)
			}
			if opts.Width == 0 {
				opts.Width = a.cfg.Snapshot.Width
			}
			if opts.Height == 0 {
				opts.Height = a.cfg.Snapshot.Height
			}
			if a.cfg.BasicAuth != nil {
				opts.Username, opts.Password = a.cfg.BasicAuth.Username, a.cfg.BasicAuth.Password
			}
			return capture.CapturePage(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Page to capture (default: the configured listen address)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "PNG path (default: <snapshot dir>/preview.png)")
	cmd.Flags().IntVar(&width, "width", 0, "Viewport width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Viewport height in pixels")
	cmd.Flags().DurationVar(&timeout, "timeout", capture.DefaultTimeout, "Overall capture timeout")
	return cmd
}
