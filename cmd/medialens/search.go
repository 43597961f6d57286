package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hyperjump/medialens/internal/cli"
	"github.com/hyperjump/medialens/internal/models"
)

func newSearchCmd(g *globalFlags) *cobra.Command {
	var (
		req    models.SearchRequest
		output string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the index by text, example image, example video or filename",
		Example: `  medialens search --text "a dog on a beach"
  medialens search --image ./query.jpg --limit 5
  medialens search --video ./clip.mp4 --interval 5 --output json
  medialens search --name holiday`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			return withEngine(cmd, g, func(ctx context.Context, a *app, c *Components) error {
				if err := req.Validate(a.cfg.Search.DefaultLimit, a.cfg.Search.MaxLimit); err != nil {
					return err
				}
				resp, err := c.Engine.Search(ctx, &req)
				if err != nil {
					return err
				}
				return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Text, "text", "", "natural-language description")
	f.StringVar(&req.ImagePath, "image", "", "example image path")
	f.StringVar(&req.VideoPath, "video", "", "example video path")
	f.StringVar(&req.Name, "name", "", "filename keyword")
	f.IntVarP(&req.Limit, "limit", "n", 0, "maximum results (0 uses search.default_limit)")
	f.Float64Var(&req.IntervalSec, "interval", 0, "frame interval for --video queries")
	f.StringVarP(&output, "output", "o", "text", "output format: text or json")
	cmd.MarkFlagsMutuallyExclusive("text", "image", "video", "name")
	cmd.MarkFlagsOneRequired("text", "image", "video", "name")
	return cmd
}
