package ingest

import (
	"io"
	"strings"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

var catalogHeaders = map[string][]string{
	"id":          {"id", "item id", "sku"},
	"code":        {"code", "item code", "ref"},
	"description": {"description", "item description", "name"},
	"unit":        {"unit", "uom"},
	"rate":        {"rate", "price", "unit rate", "unit price"},
	"category":    {"category", "trade"},
	"subcategory": {"subcategory", "sub category", "sub-category"},
	"keywords":    {"keywords", "tags"},
}

// ParseCatalog reads price-list rows from an XLSX stream. The first row is
// the header; id and description columns are required. Keywords are comma or
// semicolon separated.
func ParseCatalog(r io.Reader, opts ParseOptions) ([]entity.CatalogItem, error) {
	rows, err := readRows(r, opts.Sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, common.InvalidInput("catalog sheet needs a header row and at least one item")
	}
	idx := map[string]int{}
	for j, raw := range rows[0] {
		h := strings.ToLower(strings.TrimSpace(raw))
		for field, names := range catalogHeaders {
			if _, seen := idx[field]; !seen && matchesHeader(h, names) {
				idx[field] = j
			}
		}
	}
	col := func(row []string, field string) string {
		j, ok := idx[field]
		if !ok {
			return ""
		}
		return strings.TrimSpace(cell(row, j))
	}
	if _, ok := idx["id"]; !ok {
		return nil, common.InvalidInput("catalog sheet has no id column")
	}
	if _, ok := idx["description"]; !ok {
		return nil, common.InvalidInput("catalog sheet has no description column")
	}

	var items []entity.CatalogItem
	for i, row := range rows[1:] {
		id := col(row, "id")
		if id == "" {
			continue
		}
		rate, ok := parseQuantity(col(row, "rate"))
		if !ok && col(row, "rate") != "" {
			return nil, common.InvalidInputf("row %d: rate %q is not a number", i+2, col(row, "rate"))
		}
		if rate < 0 {
			return nil, common.InvalidInputf("row %d: negative rate", i+2)
		}
		items = append(items, entity.CatalogItem{
			ID:          id,
			Code:        col(row, "code"),
			Description: col(row, "description"),
			Unit:        col(row, "unit"),
			Rate:        rate,
			Category:    col(row, "category"),
			Subcategory: col(row, "subcategory"),
			Keywords:    splitKeywords(col(row, "keywords")),
		})
	}
	return items, nil
}

func splitKeywords(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
