package domain

import (
	"math"
	"time"
)

// Product is a catalog record keyed by SKU.
type Product struct {
	SKU         string    `json:"sku"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand"`
	ProductType string    `json:"product_type"`
	Price       *float64  `json:"price,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
	// Score is the relevance assigned by the store for a search, if any.
	Score float64 `json:"score,omitempty"`
}

// Relevance weights per searchable field. Title matches rank highest.
const (
	WeightTitle       = 10
	WeightCategory    = 7
	WeightBrand       = 5
	WeightSKU         = 3
	WeightProductType = 1
)

// SearchQuery is a normalized ranked-search request.
type SearchQuery struct {
	Text  string
	Page  int
	Limit int
}

// Skip is the number of ranked matches before the requested page.
func (q SearchQuery) Skip() int {
	return q.Page * q.Limit
}

// SearchResult is a page of ranked matches.
type SearchResult struct {
	Q         string    `json:"q"`
	Page      int       `json:"page"`
	Limit     int       `json:"limit"`
	Total     int64     `json:"total"`
	HasNext   bool      `json:"hasNext"`
	Results   []Product `json:"results"`
	LatencyMs int64     `json:"latency_ms"`
}

// SuggestResult lists titles starting with a prefix.
type SuggestResult struct {
	Q           string   `json:"q"`
	Suggestions []string `json:"suggestions"`
	LatencyMs   int64    `json:"latency_ms"`
}

// MaxSuggestions caps the suggestion list.
const MaxSuggestions = 10

// IngestionStats summarizes one ingestion run.
type IngestionStats struct {
	RunID    string
	Source   string
	Inserted int64
	Updated  int64
	Errors   int64
	// TotalProcessed counts rows that passed normalization.
	TotalProcessed int64
	Batches        int
	Duration       time.Duration
}

// DurationMs is the run duration in whole milliseconds, at least 1.
func (s IngestionStats) DurationMs() int64 {
	ms := s.Duration.Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}

// DocsPerSecond is TotalProcessed per second of run time, rounded.
func (s IngestionStats) DocsPerSecond() int64 {
	return int64(math.Round(float64(s.TotalProcessed) / float64(s.DurationMs()) * 1000))
}
