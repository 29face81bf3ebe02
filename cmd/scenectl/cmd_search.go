package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mohammed-shakir/scene-catalog/internal/core/catalog"
	"github.com/mohammed-shakir/scene-catalog/internal/core/filter"
	"github.com/mohammed-shakir/scene-catalog/internal/core/geom"
)

func init() {
	addSearchFlags(searchCmd.Flags())
	rootCmd.AddCommand(searchCmd)
}

func addSearchFlags(f *pflag.FlagSet) {
	f.Float64("lon", 0, "point longitude")
	f.Float64("lat", 0, "point latitude")
	f.Float64Slice("bbox", nil, "x1,y1,x2,y2 in degrees")
	f.Float64("max-cloud-cover", 0, "maximum cloud cover percentage")
	f.String("start", "", "acquisition start date YYYY-MM-DD")
	f.String("end", "", "acquisition end date YYYY-MM-DD")
	f.IntSlice("months", nil, "months of the year to keep, e.g. 6,7,8")
	f.Int("max-results", catalog.DefaultMaxResults, "maximum number of scenes")
	f.String("filter-id", "", "metadata field id to filter on")
	f.String("filter-value", "", "value for --filter-id")
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search scenes by location, date and cloud cover",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireDataset(); err != nil {
			return err
		}
		p, err := searchParamsFromFlags(flagDataset, cmd.Flags())
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, c *catalog.Client, _ *slog.Logger) error {
			recs, err := c.Search(ctx, p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		})
	},
}

func searchParamsFromFlags(dataset string, f *pflag.FlagSet) (catalog.SearchParams, error) {
	p := catalog.SearchParams{Dataset: dataset}

	if f.Changed("lon") != f.Changed("lat") {
		return p, errors.New("--lon and --lat must be given together")
	}
	if f.Changed("lon") {
		lon, _ := f.GetFloat64("lon")
		lat, _ := f.GetFloat64("lat")
		p.Longitude, p.Latitude = &lon, &lat
	}
	if f.Changed("bbox") {
		vals, _ := f.GetFloat64Slice("bbox")
		bb, err := geom.BBoxFromSlice(vals)
		if err != nil {
			return p, fmt.Errorf("--bbox: %w", err)
		}
		p.BBox = &bb
	}
	if f.Changed("max-cloud-cover") {
		cc, _ := f.GetFloat64("max-cloud-cover")
		if cc < 0 || cc > 100 {
			return p, errors.New("--max-cloud-cover must be in [0,100]")
		}
		p.MaxCloudCover = &cc
	}

	start, _ := f.GetString("start")
	end, _ := f.GetString("end")
	if (start == "") != (end == "") {
		return p, errors.New("--start and --end must be given together")
	}
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return p, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", d)
		}
	}
	p.StartDate, p.EndDate = start, end

	months, _ := f.GetIntSlice("months")
	for _, m := range months {
		if m < 1 || m > 12 {
			return p, fmt.Errorf("month %d not in 1..12", m)
		}
	}
	p.Months = months

	p.MaxResults, _ = f.GetInt("max-results")

	id, _ := f.GetString("filter-id")
	val, _ := f.GetString("filter-value")
	if (id == "") != (val == "") {
		return p, errors.New("--filter-id and --filter-value must be given together")
	}
	if id != "" {
		mv := filter.ParseMetadataValue(id, val)
		p.MetadataFilter = &mv
	}
	return p, nil
}
