package config

const (
	// MaxTitleLength is the maximum length for folder and document titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255) and provide
	// reasonable UX (titles should be short and descriptive).
	MaxTitleLength = 255

	// MaxPathLength is the maximum length for full node paths.
	// Longer paths indicate overly deep hierarchies (anti-pattern).
	MaxPathLength = 1000

	// MaxDescriptionLength bounds the free-text description field.
	MaxDescriptionLength = 2000
)
