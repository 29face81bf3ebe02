// Command scenectl queries the scene catalog from the shell and prints JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/scene-catalog/internal/core/catalog"
	"github.com/mohammed-shakir/scene-catalog/internal/core/config"
	"github.com/mohammed-shakir/scene-catalog/internal/core/httpclient"
	"github.com/mohammed-shakir/scene-catalog/internal/logger"
)

var (
	flagCatalogURL string
	flagLogLevel   string
	flagDataset    string
)

var rootCmd = &cobra.Command{
	Use:           "scenectl",
	Short:         "Search and inspect catalog scenes",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagCatalogURL, "catalog-url", "", "catalog API root (default $CATALOG_URL)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug|info|warn|error (default $LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVarP(&flagDataset, "dataset", "d", "", "dataset name, e.g. landsat_ot_c2_l2")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withSession logs in with the credentials from the environment, runs fn and
// always logs out again.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, c *catalog.Client, log *slog.Logger) error) (err error) {
	cfg := config.FromEnv()
	if flagCatalogURL != "" {
		cfg.Catalog.URL = flagCatalogURL
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Console: true, Service: "scenectl"}, cmd.ErrOrStderr())
	log := logger.NewSlog(&zl)

	if cfg.Catalog.Username == "" || cfg.Catalog.Password == "" {
		return errors.New("CATALOG_USERNAME and CATALOG_PASSWORD must be set")
	}

	c, err := catalog.New(
		catalog.Config{BaseURL: cfg.Catalog.URL, Backoff: cfg.Catalog.Backoff},
		catalog.WithHTTPClient(httpclient.NewOutbound(cfg.Catalog.Timeout)),
		catalog.WithLogger(log),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := c.Login(ctx, cfg.Catalog.Username, cfg.Catalog.Password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer func() {
		lctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if lerr := c.Logout(lctx); lerr != nil {
			err = errors.Join(err, fmt.Errorf("logout: %w", lerr))
		}
	}()

	return fn(ctx, c, log)
}

func requireDataset() error {
	if flagDataset == "" {
		return errors.New("--dataset is required")
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
