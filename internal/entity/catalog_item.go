package entity

// CatalogItem is an immutable priced reference record read from the catalog store.
type CatalogItem struct {
	ID                string    `json:"id"`
	Description       string    `json:"description"`
	Code              string    `json:"code,omitempty"`
	Category          string    `json:"category,omitempty"`
	Subcategory       string    `json:"subcategory,omitempty"`
	Unit              string    `json:"unit"`
	Rate              float64   `json:"rate"`
	Keywords          []string  `json:"keywords,omitempty"`
	Embedding         []float64 `json:"embedding,omitempty"`
	EmbeddingProvider string    `json:"embedding_provider,omitempty"`
}

// HasEmbeddingFrom reports whether a precomputed vector from provider is attached.
func (c CatalogItem) HasEmbeddingFrom(provider string) bool {
	return len(c.Embedding) > 0 && c.EmbeddingProvider == provider
}
