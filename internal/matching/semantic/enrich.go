// Package semantic ranks catalog items by embedding similarity.
package semantic

import (
	"strings"

	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// EnrichedText is the single text form used both when embedding catalog items
// and when looking their vectors up. Empty fields are skipped; labels and
// order are fixed.
func EnrichedText(description string, contextHeaders []string, category, subcategory, unit string, keywords []string, code string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(description))
	field := func(label, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		b.WriteString("\n")
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
	}
	field("Context", joinNonEmpty(contextHeaders, " > "))
	field("Category", category)
	field("Subcategory", subcategory)
	field("Unit", unit)
	field("Keywords", joinNonEmpty(keywords, ", "))
	field("Code", code)
	return b.String()
}

func joinNonEmpty(parts []string, sep string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// ItemText is the enriched text of a catalog item.
func ItemText(c entity.CatalogItem) string {
	return EnrichedText(c.Description, nil, c.Category, c.Subcategory, c.Unit, c.Keywords, c.Code)
}

// QueryText is the enriched text of a BOQ line.
func QueryText(description, unit string, contextHeaders []string) string {
	return EnrichedText(description, contextHeaders, "", "", unit, nil, "")
}
