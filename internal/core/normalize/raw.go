package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// FieldKind classifies a top-level key of a raw catalog record.
type FieldKind int

const (
	// FieldGeneric is the passthrough bucket for every key without special handling.
	FieldGeneric FieldKind = iota
	FieldBrowse
	FieldSpatialCoverage
	FieldSpatialBounds
	FieldTemporalCoverage
	FieldMetadata
)

func (k FieldKind) String() string {
	switch k {
	case FieldGeneric:
		return "generic"
	case FieldBrowse:
		return "browse"
	case FieldSpatialCoverage:
		return "spatialCoverage"
	case FieldSpatialBounds:
		return "spatialBounds"
	case FieldTemporalCoverage:
		return "temporalCoverage"
	case FieldMetadata:
		return "metadata"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

func kindOf(key string) FieldKind {
	switch key {
	case "browse":
		return FieldBrowse
	case "spatialCoverage":
		return FieldSpatialCoverage
	case "spatialBounds":
		return FieldSpatialBounds
	case "temporalCoverage":
		return FieldTemporalCoverage
	case "metadata":
		return FieldMetadata
	default:
		return FieldGeneric
	}
}

type Field struct {
	Key  string
	Kind FieldKind
	Raw  json.RawMessage
}

// RawRecord is one scene as returned by the catalog, with its keys in source order.
type RawRecord struct {
	Fields []Field
}

func (r *RawRecord) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("raw record: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("raw record: expected JSON object")
	}

	fields := make([]Field, 0, 16)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("raw record key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("raw record: unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("raw record %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Kind: kindOf(key), Raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("raw record: %w", err)
	}
	r.Fields = fields
	return nil
}

type browseEntry map[string]any

type metadataEntry struct {
	FieldName      string          `json:"fieldName"`
	DictionaryLink *string         `json:"dictionaryLink"`
	Value          json.RawMessage `json:"value"`
}

type temporalCoverage struct {
	StartDate json.RawMessage `json:"startDate"`
	EndDate   json.RawMessage `json:"endDate"`
}

type boundsFeature struct {
	BBox        []float64 `json:"bbox"`
	Coordinates any       `json:"coordinates"`
	Geometry    *struct {
		Coordinates any `json:"coordinates"`
	} `json:"geometry"`
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// decodeValue keeps numbers as json.Number so identifiers never lose digits.
func decodeValue(raw json.RawMessage) (any, error) {
	if isNull(raw) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
