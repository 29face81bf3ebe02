package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/scene-catalog/internal/cache/entityid"
	"github.com/mohammed-shakir/scene-catalog/internal/cache/redisstore"
	"github.com/mohammed-shakir/scene-catalog/internal/core/catalog"
	"github.com/mohammed-shakir/scene-catalog/internal/core/config"
)

var flagRefresh bool

func init() {
	resolveCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "drop cached answers and ask the catalog again")
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <display-id>...",
	Short: "Map display ids to entity ids",
	Long: "Map display ids to entity ids. When REDIS_ADDR is set, answers are read\n" +
		"from and written to the gateway's shared entity id cache. --refresh drops\n" +
		"the cached answers for the given ids first.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDataset(); err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, c *catalog.Client, log *slog.Logger) error {
			cfg := config.FromEnv().EntityCache
			opts := []entityid.Option{entityid.WithLogger(log), entityid.WithOpTimeout(cfg.OpTimeout)}
			if cfg.RedisAddr != "" {
				rdb, err := redisstore.New(ctx, redisstore.ConfigFrom(cfg))
				if err != nil {
					return fmt.Errorf("redis: %w", err)
				}
				defer func() { _ = rdb.Close() }()
				opts = append(opts, entityid.WithStore(rdb, cfg.TTL))
			}
			cache, err := entityid.New(c, opts...)
			if err != nil {
				return err
			}

			if flagRefresh {
				if err := cache.Forget(ctx, flagDataset, args...); err != nil {
					return err
				}
			}
			ids, err := cache.ResolveEntityIDs(ctx, args, flagDataset)
			if err != nil {
				return err
			}
			out := make(map[string]string, len(args))
			for i, d := range args {
				out[d] = ids[i]
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	},
}
