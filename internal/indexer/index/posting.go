package index

import "fmt"

// DocRef identifies one normalized record by collection name and position.
type DocRef struct {
	Collection string `json:"collection"`
	Pos        int    `json:"pos"`
}

func (r DocRef) String() string {
	return fmt.Sprintf("%s@%d", r.Collection, r.Pos)
}

// PostingList is the ordered list of documents containing a term.
type PostingList []DocRef

// TermEntry pairs a term with its postings.
type TermEntry struct {
	Term     string
	Postings PostingList
}
