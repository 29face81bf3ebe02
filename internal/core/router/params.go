package router

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/scene-catalog/internal/core/catalog"
	"github.com/mohammed-shakir/scene-catalog/internal/core/filter"
	"github.com/mohammed-shakir/scene-catalog/internal/core/geom"
)

const maxResultsLimit = 50_000

// badRequest marks input errors that map to 400.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func invalid(format string, args ...any) error {
	return badRequest{fmt.Errorf(format, args...)}
}

// ParseSearchParams validates the /search query string.
func ParseSearchParams(r *http.Request) (catalog.SearchParams, error) {
	q := r.URL.Query()
	p := catalog.SearchParams{Dataset: strings.TrimSpace(q.Get("dataset"))}
	if p.Dataset == "" {
		return p, invalid("missing required parameter: dataset")
	}

	rawLon, rawLat := strings.TrimSpace(q.Get("lon")), strings.TrimSpace(q.Get("lat"))
	if (rawLon == "") != (rawLat == "") {
		return p, invalid("lon and lat must be given together")
	}
	if rawLon != "" {
		lon, err := parseFloat(rawLon)
		if err != nil || lon < -180 || lon > 180 {
			return p, invalid("invalid lon %q", rawLon)
		}
		lat, err := parseFloat(rawLat)
		if err != nil || lat < -90 || lat > 90 {
			return p, invalid("invalid lat %q", rawLat)
		}
		p.Longitude, p.Latitude = &lon, &lat
	}

	if raw := strings.TrimSpace(q.Get("bbox")); raw != "" {
		bb, err := parseBBOX(raw)
		if err != nil {
			return p, invalid("invalid bbox: %v", err)
		}
		p.BBox = &bb
	}

	if raw := strings.TrimSpace(q.Get("max_cloud_cover")); raw != "" {
		cc, err := parseFloat(raw)
		if err != nil || cc < 0 || cc > 100 {
			return p, invalid("max_cloud_cover must be a number in [0,100]")
		}
		p.MaxCloudCover = &cc
	}

	start, end := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
	if (start == "") != (end == "") {
		return p, invalid("start and end must be given together")
	}
	if start != "" {
		s, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return p, invalid("invalid start %q (want YYYY-MM-DD)", start)
		}
		e, err := time.Parse(time.DateOnly, end)
		if err != nil {
			return p, invalid("invalid end %q (want YYYY-MM-DD)", end)
		}
		if e.Before(s) {
			return p, invalid("end must not be before start")
		}
		p.StartDate, p.EndDate = start, end
	}

	if raw := strings.TrimSpace(q.Get("months")); raw != "" {
		months, err := parseMonths(raw)
		if err != nil {
			return p, invalid("invalid months: %v", err)
		}
		p.Months = months
	}

	if raw := strings.TrimSpace(q.Get("max_results")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxResultsLimit {
			return p, invalid("max_results must be in [1,%d]", maxResultsLimit)
		}
		p.MaxResults = n
	}

	fid, fval := strings.TrimSpace(q.Get("filter_id")), strings.TrimSpace(q.Get("filter_value"))
	if (fid == "") != (fval == "") {
		return p, invalid("filter_id and filter_value must be given together")
	}
	if fid != "" {
		mv := filter.ParseMetadataValue(fid, fval)
		p.MetadataFilter = &mv
	}
	return p, nil
}

// parseBBOX reads x1,y1,x2,y2 in EPSG:4326 degrees.
func parseBBOX(raw string) (geom.BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return geom.BBox{}, errors.New("expected 4 comma-separated values: x1,y1,x2,y2")
	}
	vals := make([]float64, 4)
	for i, s := range parts {
		f, err := parseFloat(s)
		if err != nil {
			return geom.BBox{}, fmt.Errorf("value %d: %w", i+1, err)
		}
		vals[i] = f
	}
	bb, err := geom.BBoxFromSlice(vals)
	if err != nil {
		return geom.BBox{}, err
	}
	if !(bb.MinX >= -180 && bb.MinX <= 180 && bb.MaxX >= -180 && bb.MaxX <= 180) {
		return geom.BBox{}, errors.New("longitude must be in [-180,180]")
	}
	if !(bb.MinY >= -90 && bb.MinY <= 90 && bb.MaxY >= -90 && bb.MaxY <= 90) {
		return geom.BBox{}, errors.New("latitude must be in [-90,90]")
	}
	if bb.MaxX <= bb.MinX || bb.MaxY <= bb.MinY {
		return geom.BBox{}, errors.New("coordinates must satisfy x2>x1 and y2>y1")
	}
	return bb, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}

func parseMonths(raw string) ([]int, error) {
	var out []int
	for s := range strings.SplitSeq(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		m, err := strconv.Atoi(s)
		if err != nil || m < 1 || m > 12 {
			return nil, fmt.Errorf("month %q not in 1..12", s)
		}
		out = append(out, m)
	}
	return out, nil
}

func parseRes(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 15 {
		return 0, invalid("res must be an integer in [0,15]")
	}
	return n, nil
}
