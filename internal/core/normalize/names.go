package normalize

import (
	"strings"
	"unicode"
)

// CamelToSnake lowers every upper-case rune and prefixes it with '_' unless it is first.
func CamelToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i != 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TitleToSnake turns "Landsat Product Identifier L1" into "landsat_product_identifier_l1"
// and "Reflective/Thermal" into "reflective-thermal".
func TitleToSnake(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "/", "-")
}

type nameRule struct {
	name    string
	applies func(string) bool
	rewrite func(string) string
}

// evaluated in order; every applicable rule sees the previous rule's output
var fieldNameRules = []nameRule{
	{
		name:    "identifier-to-id",
		applies: func(n string) bool { return strings.Contains(n, "identifier") },
		rewrite: func(n string) string { return strings.Replace(n, "identifier", "id", 1) },
	},
	{
		name:    "date-acquired",
		applies: func(n string) bool { return n == "date_acquired" },
		rewrite: func(string) string { return AcquisitionDateKey },
	},
	{
		name:    "strip-l1",
		applies: func(n string) bool { return strings.HasSuffix(n, "_l1") },
		rewrite: func(n string) string { return strings.TrimSuffix(n, "_l1") },
	},
	{
		name:    "strip-l2",
		applies: func(n string) bool { return strings.HasSuffix(n, "_l2") },
		rewrite: func(n string) string { return strings.TrimSuffix(n, "_l2") },
	},
}

// MetadataFieldName maps a catalog metadata field title to its record key.
func MetadataFieldName(title string) string {
	n := TitleToSnake(title)
	for _, r := range fieldNameRules {
		if r.applies(n) {
			n = r.rewrite(n)
		}
	}
	return n
}

// DatasetEntityIDKey names the dataset's own entity identifier so it does not collide
// with the catalog's entity_id: "sentinel_2a" -> "sentinel_entity_id".
func DatasetEntityIDKey(dataset string) string {
	prefix, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(dataset)), "_")
	if prefix == "" {
		prefix = "dataset"
	}
	return prefix + "_entity_id"
}

// dictionaryID is the fragment of a data dictionary link.
func dictionaryID(link *string) string {
	if link == nil {
		return ""
	}
	l := *link
	if i := strings.LastIndexByte(l, '#'); i >= 0 {
		l = l[i+1:]
	}
	return strings.TrimSpace(l)
}

func isIDKey(name string) bool {
	return strings.HasSuffix(name, "_id")
}
