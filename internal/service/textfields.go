package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/synapse-db/synapse/internal/source"
)

// maxAutoDetectedFields caps how many text fields auto-detection picks up per
// collection. Collections with wider documents need explicit field lists.
const maxAutoDetectedFields = 10

// BuildDocumentText extracts the named fields from a document and joins their
// rendered values with single spaces, in the given field order. Missing fields
// are skipped. Documents where no field is present yield the empty string.
func BuildDocumentText(doc source.Document, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		value, ok := doc[field]
		if !ok || value == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", value))
	}
	return strings.Join(parts, " ")
}

// DetectTextFields inspects a sample document and returns fields likely to
// carry meaningful text: non-blank strings, nested maps, and arrays whose
// first element is a string. Underscore-prefixed fields (_id, upload
// timestamps and other internal bookkeeping) are never selected, even when
// the source adapter has rendered them as strings. Keys are scanned in sorted
// order so detection is deterministic for a given document.
func DetectTextFields(doc source.Document) []string {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]string, 0, maxAutoDetectedFields)
	for _, key := range keys {
		if strings.HasPrefix(key, "_") {
			continue
		}
		if !isTextValue(doc[key]) {
			continue
		}
		fields = append(fields, key)
		if len(fields) == maxAutoDetectedFields {
			break
		}
	}
	return fields
}

func isTextValue(value interface{}) bool {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case map[string]interface{}:
		return true
	case []interface{}:
		if len(v) == 0 {
			return false
		}
		_, ok := v[0].(string)
		return ok
	default:
		return false
	}
}
