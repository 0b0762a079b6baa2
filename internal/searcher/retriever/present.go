package retriever

import (
	"strings"
	"unicode/utf8"

	"github.com/civicpulse/civicsearch/internal/corpus"
)

// title returns the first non-empty value among fields, or
// "<collection> record".
func title(rec corpus.NormalizedRecord, collection string, fields []string) string {
	for _, name := range fields {
		if v, ok := rec.Get(name); ok && v != "" {
			return v
		}
	}
	return collection + " record"
}

// snippet joins the first n field values with spaces and cuts the result to
// at most limit runes. Negative n or limit count as 0.
func snippet(rec corpus.NormalizedRecord, n, limit int) string {
	n, limit = max(n, 0), max(limit, 0)
	values := rec.Values()
	if len(values) > n {
		values = values[:n]
	}
	return truncateRunes(strings.Join(values, " "), limit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	i, count := 0, 0
	for i = range s {
		if count == limit {
			break
		}
		count++
	}
	return s[:i]
}
