package ingest

import (
	"regexp"
	"strings"

	"github.com/leadrelay/leadrelay-backend/internal/platform"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeFields maps raw question answers into a flat field map. Question
// names are lowercased with whitespace collapsed to underscores; multi-value
// answers keep only the first value. Later duplicates of a normalized name
// are dropped.
func NormalizeFields(entries []platform.FieldEntry) types.FieldMap {
	fields := make(types.FieldMap, len(entries))
	for _, entry := range entries {
		key := NormalizeFieldName(entry.Name)
		if key == "" {
			continue
		}
		if _, exists := fields[key]; exists {
			continue
		}
		value := ""
		if len(entry.Values) > 0 {
			value = entry.Values[0]
		}
		fields[key] = value
	}
	return fields
}

// NormalizeFieldName lowercases and snake-cases a question name.
func NormalizeFieldName(name string) string {
	trimmed := strings.TrimSpace(strings.ToLower(name))
	return whitespaceRe.ReplaceAllString(trimmed, "_")
}
