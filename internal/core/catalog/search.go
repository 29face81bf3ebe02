package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammed-shakir/scene-catalog/internal/core/filter"
	"github.com/mohammed-shakir/scene-catalog/internal/core/geom"
	"github.com/mohammed-shakir/scene-catalog/internal/core/normalize"
	"github.com/mohammed-shakir/scene-catalog/internal/logger"
)

const DefaultMaxResults = 100

type SearchParams struct {
	Dataset string

	// Longitude and Latitude select a point; together they win over BBox.
	Longitude *float64
	Latitude  *float64
	BBox      *geom.BBox

	MaxCloudCover *float64
	// StartDate and EndDate are only applied when both are set.
	StartDate string
	EndDate   string
	Months    []int

	MaxResults     int
	MetadataFilter *filter.MetadataValue
}

// SceneFilter builds the catalog scene filter for p.
func (p SearchParams) SceneFilter() filter.Scene {
	var sf filter.Scene

	switch {
	case p.Longitude != nil && p.Latitude != nil:
		g := filter.NewGeoJSON(geom.NewPoint(geom.Coordinate{Longitude: *p.Longitude, Latitude: *p.Latitude}))
		if p.BBox != nil {
			bb := *p.BBox
			g.BBox = &bb
		}
		sf.Spatial = g
	case p.BBox != nil:
		sf.Spatial = filter.NewMbr(*p.BBox)
	}

	if acq, ok := filter.NewAcquisition(p.StartDate, p.EndDate); ok {
		sf.Acquisition = &acq
	}
	if p.MaxCloudCover != nil {
		cc := filter.NewCloudCover(filter.WithMin(0), filter.WithMax(*p.MaxCloudCover), filter.WithIncludeUnknown(false))
		sf.CloudCover = &cc
	}
	if p.MetadataFilter != nil {
		mv := *p.MetadataFilter
		sf.Metadata = &mv
	}
	if len(p.Months) > 0 {
		sf.Months = append([]int(nil), p.Months...)
	}
	return sf
}

type searchRequest struct {
	DatasetName  string       `json:"datasetName"`
	SceneFilter  filter.Scene `json:"sceneFilter"`
	MaxResults   int          `json:"maxResults"`
	MetadataType string       `json:"metadataType"`
}

type searchResponse struct {
	Results []json.RawMessage `json:"results"`
}

// Search runs a scene search and normalizes every result.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]normalize.Record, error) {
	if p.Dataset == "" {
		return nil, fmt.Errorf("search: dataset is required")
	}
	ctx = logger.WithDataset(ctx, p.Dataset)
	maxResults := p.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	data, err := c.do(ctx, "scene-search", searchRequest{
		DatasetName:  p.Dataset,
		SceneFilter:  p.SceneFilter(),
		MaxResults:   maxResults,
		MetadataType: "full",
	})
	if err != nil {
		return nil, err
	}
	var sr searchResponse
	if !isEmpty(data) {
		if err := json.Unmarshal(data, &sr); err != nil {
			return nil, fmt.Errorf("scene-search: decode: %w", err)
		}
	}

	out := make([]normalize.Record, 0, len(sr.Results))
	opts := normalize.Options{Dataset: p.Dataset}
	for i, raw := range sr.Results {
		rec, err := normalize.FromJSON(raw, opts)
		if err != nil {
			return nil, fmt.Errorf("normalize result %d: %w", i, err)
		}
		out = append(out, rec)
	}
	c.log.DebugContext(ctx, "scene search done", "results", len(out), "max_results", maxResults)
	return out, nil
}
