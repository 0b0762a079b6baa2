package retriever

import (
	"strings"

	apperrors "github.com/civicpulse/civicsearch/pkg/errors"
)

// Outcome tells a caller which of the three answer shapes it received.
type Outcome string

const (
	OutcomeMatched    Outcome = "matched"
	OutcomeEmptyQuery Outcome = "empty_query"
	OutcomeNoMatches  Outcome = "no_matches"
)

// ResultItem is one ranked record.
type ResultItem struct {
	Collection string `json:"collection"`
	Position   int    `json:"position"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	Score      int    `json:"score"`
}

// Result is the answer to one query. Items is empty unless Outcome is
// OutcomeMatched.
type Result struct {
	Query      string         `json:"query"`
	Outcome    Outcome        `json:"outcome"`
	Generation int64          `json:"generation"`
	Terms      []string       `json:"terms"`
	TotalHits  int            `json:"total_hits"`
	Items      []ResultItem   `json:"items"`
	TermStats  map[string]int `json:"term_stats,omitempty"`
}

// Err returns ErrEmptyQuery or ErrNoMatches for the corresponding outcomes
// and nil for a match.
func (r *Result) Err() error {
	switch r.Outcome {
	case OutcomeEmptyQuery:
		return apperrors.ErrEmptyQuery
	case OutcomeNoMatches:
		return apperrors.ErrNoMatches
	default:
		return nil
	}
}

const (
	emptyQueryText = "Could not process the query. Try using relevant keywords."
	noMatchesText  = "No relevant documents were found in the local index."
	matchedHeader  = "Found the following relevant information:"
)

// Format renders r as the plain-text answer block shown to citizens.
func Format(r *Result) string {
	switch r.Outcome {
	case OutcomeEmptyQuery:
		return emptyQueryText
	case OutcomeNoMatches:
		return noMatchesText
	}
	var sb strings.Builder
	sb.WriteString(matchedHeader)
	for _, item := range r.Items {
		sb.WriteString("\n- ")
		sb.WriteString(item.Title)
		sb.WriteString(" (source: ")
		sb.WriteString(item.Collection)
		sb.WriteString(") - ")
		sb.WriteString(item.Snippet)
	}
	return sb.String()
}
