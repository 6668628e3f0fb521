package entity

// WorkItem is one described line of a bill of quantities.
type WorkItem struct {
	RowNumber      int      `json:"row_number"`
	Description    string   `json:"description"`
	Quantity       float64  `json:"quantity,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	ContextHeaders []string `json:"context_headers,omitempty"` // most general first
}

// IsContextHeader reports whether the row is a section label rather than a
// priced item: a row without positive quantity is never matched.
func (w WorkItem) IsContextHeader() bool {
	return w.Quantity <= 0
}
