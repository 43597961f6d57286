package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/medialens/internal/cli"
	"github.com/hyperjump/medialens/internal/models"
	"github.com/hyperjump/medialens/internal/storage"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

func newListCmd(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every registered entry in index order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			return withEngine(cmd, g, func(_ context.Context, _ *app, c *Components) error {
				return cli.WriteEntries(cmd.OutOrStdout(), c.Engine.List(), format)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func newInfoCmd(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index statistics and disk usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			return withEngine(cmd, g, func(_ context.Context, a *app, c *Components) error {
				stats := models.StatsResponse{
					Stats:         c.Engine.Stats(),
					Dimensions:    c.Engine.Dimensions(),
					IndexDir:      c.Engine.IndexDir(),
					FrameInterval: c.Engine.FrameInterval(),
				}
				paths := append([]string{c.Engine.IndexDir()}, storage.CatalogFiles(a.cfg.Storage.CatalogPath)...)
				if n, err := storage.DiskUsageBytes(paths...); err == nil {
					stats.DiskUsageBytes = n
				} else {
					a.logger.Warn("disk usage failed", zap.Error(err))
				}
				return cli.WriteStats(cmd.OutOrStdout(), &stats, format)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func newClearCmd(g *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry and delete the saved index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, g, func(ctx context.Context, _ *app, c *Components) error {
				n := c.Engine.Stats().Total
				if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Remove all %d entries?", n)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
				if err := c.Engine.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the entry list as JSON or an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := cli.ParseExportFormat(format)
			if err != nil {
				return err
			}
			return withEngine(cmd, g, func(_ context.Context, _ *app, c *Components) error {
				entries := c.Engine.List()
				if out == "" || out == "-" {
					if f == cli.ExportXLSX {
						return lenserr.New(lenserr.CodeCLIInputInvalid, lenserr.ErrInvalidInput, "xlsx export needs --out")
					}
					return cli.Export(cmd.OutOrStdout(), entries, f)
				}
				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				if err := cli.Export(file, entries, f); err != nil {
					_ = file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d entries to %s\n", len(entries), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "export format: json or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output file (stdout when empty, json only)")
	return cmd
}

func newProbeCmd(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "probe <video>",
		Short: "Show duration, frame rate and resolution of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()
			info, err := newSampler(a.cfg, a.logger).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cli.WriteVideoInfo(cmd.OutOrStdout(), args[0], info, format)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}
