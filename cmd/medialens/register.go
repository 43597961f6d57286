package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRegisterCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Add images and videos to the index",
	}

	image := &cobra.Command{
		Use:   "image <path>",
		Short: "Register one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, g, func(ctx context.Context, _ *app, c *Components) error {
				idx, err := c.Engine.RegisterImage(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as #%d\n", args[0], idx)
				return nil
			})
		},
	}

	var videoInterval float64
	video := &cobra.Command{
		Use:   "video <path>",
		Short: "Register one video by sampling and averaging its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, g, func(ctx context.Context, _ *app, c *Components) error {
				idx, err := c.Engine.RegisterVideo(ctx, args[0], videoInterval)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as #%d\n", args[0], idx)
				return nil
			})
		},
	}
	video.Flags().Float64Var(&videoInterval, "interval", 0, "seconds between sampled frames (0 uses media.frame_interval_sec)")

	var (
		dirInterval float64
		recursive   bool
	)
	dir := &cobra.Command{
		Use:   "dir <path>",
		Short: "Register every image, then every video, in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, g, func(ctx context.Context, _ *app, c *Components) error {
				indices, err := c.Engine.RegisterDirectory(ctx, args[0], recursive, dirInterval)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %d files from %s\n", len(indices), args[0])
				return nil
			})
		},
	}
	dir.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	dir.Flags().Float64Var(&dirInterval, "interval", 0, "seconds between sampled video frames (0 uses media.frame_interval_sec)")

	cmd.AddCommand(image, video, dir)
	return cmd
}
