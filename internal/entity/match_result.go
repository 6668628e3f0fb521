package entity

import (
	"math"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
)

// ResultKind tags the MatchResult variant.
type ResultKind string

const (
	KindMatched       ResultKind = "matched"
	KindContextHeader ResultKind = "context_header"
	KindUnmatched     ResultKind = "unmatched"
)

// CatalogMatch is the matched side of a Matched result.
type CatalogMatch struct {
	ItemID      string  `json:"item_id"`
	Description string  `json:"description"`
	Code        string  `json:"code,omitempty"`
	Unit        string  `json:"unit"`
	Rate        float64 `json:"rate"`
}

// MatchResult is the outcome for one WorkItem. Build it with NewMatched,
// NewContextHeader or NewUnmatched; Match is non-nil iff Kind is KindMatched.
type MatchResult struct {
	Kind           ResultKind         `json:"kind"`
	JobID          string             `json:"job_id,omitempty"`
	RowNumber      int                `json:"row_number"`
	Description    string             `json:"description"`
	Quantity       float64            `json:"quantity"`
	Unit           string             `json:"unit,omitempty"`
	ContextHeaders []string           `json:"context_headers,omitempty"`
	Method         constants.Method   `json:"method"`
	Confidence     float64            `json:"confidence"`
	Match          *CatalogMatch      `json:"match,omitempty"`
	FallbackFrom   constants.Strategy `json:"fallback_from,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	Breakdown      map[string]float64 `json:"breakdown,omitempty"`
}

// NewMatched builds a Matched result for item against catalog item c.
func NewMatched(item WorkItem, c CatalogItem, method constants.Method, confidence float64) MatchResult {
	return MatchResult{
		Kind:           KindMatched,
		RowNumber:      item.RowNumber,
		Description:    item.Description,
		Quantity:       item.Quantity,
		Unit:           item.Unit,
		ContextHeaders: item.ContextHeaders,
		Method:         method,
		Confidence:     confidence,
		Match: &CatalogMatch{
			ItemID:      c.ID,
			Description: c.Description,
			Code:        c.Code,
			Unit:        c.Unit,
			Rate:        c.Rate,
		},
	}
}

// NewContextHeader records a section label row. Context rows always carry
// zero confidence and zero total.
func NewContextHeader(item WorkItem) MatchResult {
	return MatchResult{
		Kind:           KindContextHeader,
		RowNumber:      item.RowNumber,
		Description:    item.Description,
		Quantity:       item.Quantity,
		Unit:           item.Unit,
		ContextHeaders: item.ContextHeaders,
		Method:         constants.MethodContext,
		Confidence:     0,
	}
}

// NewUnmatched records a priced row that could not receive a suggestion.
func NewUnmatched(item WorkItem, method constants.Method, notes string) MatchResult {
	return MatchResult{
		Kind:           KindUnmatched,
		RowNumber:      item.RowNumber,
		Description:    item.Description,
		Quantity:       item.Quantity,
		Unit:           item.Unit,
		ContextHeaders: item.ContextHeaders,
		Method:         method,
		Notes:          notes,
	}
}

// MatchedItemID returns the matched catalog id, or "" for non-matched rows.
func (r MatchResult) MatchedItemID() string {
	if r.Match == nil {
		return ""
	}
	return r.Match.ItemID
}

// TotalPrice is quantity × matched rate; zero unless Matched.
func (r MatchResult) TotalPrice() float64 {
	if r.Kind != KindMatched || r.Match == nil {
		return 0
	}
	return r.Quantity * r.Match.Rate
}

// Validate checks the result invariants. A failure is a scorer bug.
func (r MatchResult) Validate() error {
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return common.InvariantViolationf("row %d: confidence %v outside [0,1]", r.RowNumber, r.Confidence)
	}
	switch r.Kind {
	case KindMatched:
		if r.Match == nil {
			return common.InvariantViolationf("row %d: matched result without catalog item", r.RowNumber)
		}
		if r.Match.Rate < 0 || math.IsNaN(r.Match.Rate) {
			return common.InvariantViolationf("row %d: negative rate %v on item %s", r.RowNumber, r.Match.Rate, r.Match.ItemID)
		}
		if r.Method == constants.MethodContext {
			return common.InvariantViolationf("row %d: matched result tagged %s", r.RowNumber, r.Method)
		}
	case KindContextHeader:
		if r.Match != nil || r.Confidence != 0 || r.Method != constants.MethodContext {
			return common.InvariantViolationf("row %d: malformed context header result", r.RowNumber)
		}
	case KindUnmatched:
		if r.Match != nil {
			return common.InvariantViolationf("row %d: unmatched result with catalog item", r.RowNumber)
		}
	default:
		return common.InvariantViolationf("row %d: unknown result kind %q", r.RowNumber, r.Kind)
	}
	return nil
}
