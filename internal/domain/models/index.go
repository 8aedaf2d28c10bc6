package models

import "time"

// IndexEntry is the shape of a node as seen by the search index. Effective
// principals are serialized into it at index time, not computed per query.
type IndexEntry struct {
	NodeID     string    `json:"node_id" db:"node_id"`
	Kind       NodeKind  `json:"kind" db:"kind"`
	Title      string    `json:"title" db:"title"`
	Text       string    `json:"text" db:"text_content"`
	Language   string    `json:"language" db:"language"`
	Path       string    `json:"path" db:"path"`
	Principals []string  `json:"principals" db:"principals"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// SearchOptions filters an index query. Principals is the querying user's
// own token set (user id plus group ids); the index intersects it against
// each entry's baked-in principal list.
type SearchOptions struct {
	Query      string
	Language   string
	Principals []string
	Limit      int
	Offset     int
}

// ApplyDefaults fills zero values with sane defaults.
func (o *SearchOptions) ApplyDefaults() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Language == "" {
		o.Language = "english"
	}
}

type SearchResult struct {
	Entry IndexEntry `json:"entry"`
	Score float64    `json:"score"`
}
