// Package normalize turns raw catalog scene records into records with snake_case keys
// and typed values.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mohammed-shakir/scene-catalog/internal/core/geom"
)

const (
	AcquisitionDateKey  = "acquisition_date"
	TemporalCoverageKey = "temporal_coverage"
	DisplayIDKey        = "display_id"
	EntityIDKey         = "entity_id"
	SpatialCoverageKey  = "spatial_coverage"

	droppedDictionaryID = "coordinates_degrees"
)

// ErrNoAcquisitionDate means the catalog sent neither an acquisition date nor a
// temporal coverage to derive one from.
var ErrNoAcquisitionDate = errors.New("record has no acquisition_date and no temporal_coverage")

// Record is a normalized scene. Values are string, float64, time.Time, []float64,
// []any or map[string]any.
type Record map[string]any

func (r Record) String(key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

func (r Record) DisplayID() string {
	s, _ := r.String(DisplayIDKey)
	return s
}

func (r Record) EntityID() string {
	s, _ := r.String(EntityIDKey)
	return s
}

func (r Record) AcquisitionDate() (time.Time, bool) {
	t, ok := r[AcquisitionDateKey].(time.Time)
	return t, ok
}

// Footprint parses spatial_coverage as a geometry.
func (r Record) Footprint() (geom.Geometry, error) {
	v, ok := r[SpatialCoverageKey]
	if !ok || v == nil {
		return geom.Geometry{}, errors.New("record has no spatial_coverage")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("encode spatial_coverage: %w", err)
	}
	return geom.ParseGeoJSON(b)
}

type Options struct {
	// IncludeBrowse keeps browse imagery entries; they are dropped by default.
	IncludeBrowse bool
	// Dataset names the dataset-specific entity identifier key.
	Dataset string
}

func FromJSON(b []byte, opts Options) (Record, error) {
	var raw RawRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return Normalize(raw, opts)
}

// Normalize builds a fresh Record; it keeps no state between calls.
func Normalize(raw RawRecord, opts Options) (Record, error) {
	out := make(Record, len(raw.Fields)+8)
	for _, f := range raw.Fields {
		name := CamelToSnake(f.Key)
		switch f.Kind {
		case FieldBrowse:
			if !opts.IncludeBrowse {
				continue
			}
			v, err := browseProducts(f.Raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Key, err)
			}
			out[name] = v

		case FieldSpatialCoverage:
			v, err := decodeValue(f.Raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Key, err)
			}
			out[name] = plain(v)

		case FieldSpatialBounds:
			bb, ok, err := boundingBox(f.Raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Key, err)
			}
			if ok {
				out[name] = bb
			}

		case FieldTemporalCoverage:
			if isNull(f.Raw) {
				continue
			}
			v, err := temporalRange(f.Raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Key, err)
			}
			out[name] = v

		case FieldMetadata:
			if err := mergeMetadataFields(out, f.Raw, opts.Dataset); err != nil {
				return nil, fmt.Errorf("%s: %w", f.Key, err)
			}

		case FieldGeneric:
			v, err := decodeValue(f.Raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Key, err)
			}
			if isIDKey(name) {
				out[name] = CoerceID(v)
			} else {
				out[name] = CoerceValue(v)
			}

		default:
			return nil, fmt.Errorf("unhandled field kind %s for %q", f.Kind, f.Key)
		}
	}

	if _, ok := out[AcquisitionDateKey]; !ok {
		tc, ok := out[TemporalCoverageKey].([]any)
		if !ok || len(tc) == 0 {
			return nil, ErrNoAcquisitionDate
		}
		out[AcquisitionDateKey] = tc[0]
	}
	return out, nil
}

func browseProducts(raw json.RawMessage) (map[string]any, error) {
	var entries []browseEntry
	if !isNull(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&entries); err != nil {
			return nil, err
		}
	}
	out := make(map[string]any, len(entries))
	for i, e := range entries {
		bn, _ := e["browseName"].(string)
		name := TitleToSnake(bn)
		if name == "" {
			name = "browse_" + strconv.Itoa(i)
		}
		product := make(map[string]any, len(e))
		for k, v := range e {
			product[CamelToSnake(k)] = plain(v)
		}
		out[name] = product
	}
	return out, nil
}

func boundingBox(raw json.RawMessage) ([]float64, bool, error) {
	if isNull(raw) {
		return nil, false, nil
	}
	var f boundsFeature
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false, err
	}
	if len(f.BBox) > 0 {
		return f.BBox, true, nil
	}
	coords := f.Coordinates
	if coords == nil && f.Geometry != nil {
		coords = f.Geometry.Coordinates
	}
	bb, ok := geom.BoundsOf(coords)
	if !ok {
		return nil, false, nil
	}
	return bb.Slice(), true, nil
}

func temporalRange(raw json.RawMessage) ([]any, error) {
	var tc temporalCoverage
	if err := json.Unmarshal(raw, &tc); err != nil {
		return nil, err
	}
	start, err := decodeValue(tc.StartDate)
	if err != nil {
		return nil, fmt.Errorf("startDate: %w", err)
	}
	end, err := decodeValue(tc.EndDate)
	if err != nil {
		return nil, fmt.Errorf("endDate: %w", err)
	}
	return []any{CoerceDate(start), CoerceDate(end)}, nil
}

func mergeMetadataFields(out Record, raw json.RawMessage, dataset string) error {
	if isNull(raw) {
		return nil
	}
	var entries []metadataEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return err
	}
	for _, e := range entries {
		if dictionaryID(e.DictionaryLink) == droppedDictionaryID {
			continue
		}
		name := MetadataFieldName(e.FieldName)
		if name == EntityIDKey {
			name = DatasetEntityIDKey(dataset)
		}
		v, err := decodeValue(e.Value)
		if err != nil {
			return fmt.Errorf("field %q: %w", e.FieldName, err)
		}
		if isIDKey(name) {
			out[name] = CoerceID(v)
		} else {
			out[name] = CoerceValue(v)
		}
	}
	return nil
}
