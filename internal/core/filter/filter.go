// Package filter holds the catalog's scene filter vocabulary.
// Every type marshals to the exact JSON shape the scene-search endpoint expects.
package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/scene-catalog/internal/core/geom"
)

// Spatial is implemented only by Mbr and GeoJSON.
type Spatial interface {
	FilterType() string
	spatial()
}

type Mbr struct {
	LowerLeft  geom.Coordinate
	UpperRight geom.Coordinate
}

func NewMbr(bb geom.BBox) Mbr {
	return Mbr{LowerLeft: bb.LowerLeft(), UpperRight: bb.UpperRight()}
}

func (Mbr) FilterType() string { return "mbr" }
func (Mbr) spatial()           {}

func (m Mbr) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FilterType string          `json:"filterType"`
		LowerLeft  geom.Coordinate `json:"lowerLeft"`
		UpperRight geom.Coordinate `json:"upperRight"`
	}{m.FilterType(), m.LowerLeft, m.UpperRight})
}

// GeoJSON filters by one shape. BBox is informational and never sent.
type GeoJSON struct {
	Shape geom.Geometry
	BBox  *geom.BBox
}

func NewGeoJSON(shape geom.Geometry) GeoJSON {
	return GeoJSON{Shape: shape}
}

func (GeoJSON) FilterType() string { return "geoJson" }
func (GeoJSON) spatial()           {}

func (g GeoJSON) MarshalJSON() ([]byte, error) {
	if g.Shape.IsZero() {
		return nil, fmt.Errorf("geoJson filter has no shape")
	}
	return json.Marshal(struct {
		FilterType string        `json:"filterType"`
		GeoJSON    geom.Geometry `json:"geoJson"`
	}{g.FilterType(), g.Shape})
}

type Acquisition struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NewAcquisition reports ok=false unless both dates are present.
func NewAcquisition(start, end string) (Acquisition, bool) {
	if start == "" || end == "" {
		return Acquisition{}, false
	}
	return Acquisition{Start: start, End: end}, true
}

type CloudCover struct {
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	IncludeUnknown bool    `json:"includeUnknown"`
}

type CloudCoverOption func(*CloudCover)

func WithMin(v float64) CloudCoverOption { return func(c *CloudCover) { c.Min = v } }
func WithMax(v float64) CloudCoverOption { return func(c *CloudCover) { c.Max = v } }

func WithIncludeUnknown(v bool) CloudCoverOption {
	return func(c *CloudCover) { c.IncludeUnknown = v }
}

// NewCloudCover defaults to the full 0..100 range, unknown cover excluded.
func NewCloudCover(opts ...CloudCoverOption) CloudCover {
	c := CloudCover{Min: 0, Max: 100}
	for _, o := range opts {
		o(&c)
	}
	return c
}

const (
	OperandLike  = "like"
	OperandEqual = "="
)

type MetadataValue struct {
	FilterID string `json:"filterId"`
	Value    any    `json:"value"`
	Operand  string `json:"operand"`
}

// NewMetadataValue infers the operand from the value type:
// strings match as substrings, numbers match exactly.
func NewMetadataValue[T string | int | float64](fieldID string, value T) MetadataValue {
	op := OperandEqual
	if _, ok := any(value).(string); ok {
		op = OperandLike
	}
	return MetadataValue{FilterID: fieldID, Value: value, Operand: op}
}

// ParseMetadataValue builds a MetadataValue from user input. Text that
// parses as a number is sent as a number.
func ParseMetadataValue(fieldID, raw string) MetadataValue {
	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return NewMetadataValue(fieldID, f)
	}
	return NewMetadataValue(fieldID, raw)
}

func (m MetadataValue) MarshalJSON() ([]byte, error) {
	type plain MetadataValue
	return json.Marshal(struct {
		FilterType string `json:"filterType"`
		plain
	}{"value", plain(m)})
}

// Scene aggregates the optional filters of a scene search.
// Absent members are omitted from the JSON, never sent as null.
type Scene struct {
	Acquisition *Acquisition   `json:"acquisitionFilter,omitempty"`
	Spatial     Spatial        `json:"spatialFilter,omitempty"`
	CloudCover  *CloudCover    `json:"cloudCoverFilter,omitempty"`
	Metadata    *MetadataValue `json:"metadataFilter,omitempty"`
	Months      []int          `json:"seasonalFilter,omitempty"`
}

func (s Scene) IsEmpty() bool {
	return s.Acquisition == nil && s.Spatial == nil && s.CloudCover == nil &&
		s.Metadata == nil && len(s.Months) == 0
}
