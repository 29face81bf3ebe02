package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/scene-catalog/internal/core/catalog"
	"github.com/mohammed-shakir/scene-catalog/internal/core/normalize"
)

const metadataConcurrency = 4

var flagBrowse bool

func init() {
	metadataCmd.Flags().BoolVar(&flagBrowse, "browse", false, "include browse imagery links")
	rootCmd.AddCommand(metadataCmd, displayIDCmd)
}

var metadataCmd = &cobra.Command{
	Use:   "metadata <entity-id>...",
	Short: "Print the normalized metadata of one or more scenes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDataset(); err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, c *catalog.Client, _ *slog.Logger) error {
			recs, err := fetchMetadata(ctx, c, flagDataset, args, flagBrowse)
			if err != nil {
				return err
			}
			if len(recs) == 1 {
				return printJSON(cmd.OutOrStdout(), recs[0])
			}
			return printJSON(cmd.OutOrStdout(), recs)
		})
	},
}

// fetchMetadata keeps the order of ids; the first failure cancels the rest.
func fetchMetadata(ctx context.Context, c *catalog.Client, dataset string, ids []string, browse bool) ([]normalize.Record, error) {
	out := make([]normalize.Record, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(metadataConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := c.GetMetadata(ctx, id, dataset, browse)
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

var displayIDCmd = &cobra.Command{
	Use:   "display-id <entity-id>",
	Short: "Print the display id of a scene",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDataset(); err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, c *catalog.Client, _ *slog.Logger) error {
			id, err := c.GetDisplayID(ctx, args[0], flagDataset)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"entity_id":  args[0],
				"display_id": id,
			})
		})
	},
}
