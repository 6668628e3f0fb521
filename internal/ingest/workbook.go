package ingest

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// headerScanRows bounds the search for the column header row.
const headerScanRows = 20

var (
	descriptionHeaders = []string{"description", "item description", "particulars", "description of work", "item"}
	quantityHeaders    = []string{"qty", "quantity", "qnty", "quant"}
	unitHeaders        = []string{"unit", "units", "uom", "unit of measure"}
	refHeaders         = []string{"ref", "item no", "item no.", "no", "no.", "s/n", "sn", "code"}

	numberedRef = regexp.MustCompile(`^\d+(\.\d+)*\.?$`)
)

// ParseOptions selects the sheet to read; empty means the first sheet.
type ParseOptions struct {
	Sheet string
}

type columns struct {
	header      int
	ref         int
	description int
	quantity    int
	unit        int
}

// ParseWorkbookFile opens path and parses it with ParseWorkbook.
func ParseWorkbookFile(path string, opts ParseOptions) ([]entity.WorkItem, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer fh.Close()
	return ParseWorkbook(fh, opts)
}

// ParseWorkbook reads BOQ lines from an XLSX stream. Rows without a positive
// quantity become context headers and maintain the heading stack that later
// rows carry as ContextHeaders.
func ParseWorkbook(r io.Reader, opts ParseOptions) ([]entity.WorkItem, error) {
	rows, err := readRows(r, opts.Sheet)
	if err != nil {
		return nil, err
	}
	cols, ok := detectColumns(rows)
	if !ok {
		return nil, common.InvalidInput("workbook has no header row with description and quantity columns")
	}

	var (
		items []entity.WorkItem
		stack headingStack
	)
	for i := cols.header + 1; i < len(rows); i++ {
		row := rows[i]
		desc := strings.Join(strings.Fields(cell(row, cols.description)), " ")
		if desc == "" {
			continue
		}
		qty, hasQty := parseQuantity(cell(row, cols.quantity))
		item := entity.WorkItem{
			RowNumber:      i + 1,
			Description:    desc,
			Unit:           strings.TrimSpace(cell(row, cols.unit)),
			ContextHeaders: stack.snapshot(),
		}
		if hasQty && qty > 0 {
			item.Quantity = qty
			items = append(items, item)
			continue
		}
		items = append(items, item)
		stack.push(strings.TrimSpace(cell(row, cols.ref)), desc)
	}
	if len(items) == 0 {
		return nil, common.InvalidInput("workbook has no BOQ rows below the header")
	}
	return items, nil
}

func readRows(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, common.InvalidInputf("not a readable workbook: %v", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, common.InvalidInput("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, common.InvalidInputf("read sheet %q: %v", sheet, err)
	}
	return rows, nil
}

func detectColumns(rows [][]string) (columns, bool) {
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		c := columns{header: i, ref: -1, description: -1, quantity: -1, unit: -1}
		for j, raw := range rows[i] {
			h := strings.ToLower(strings.TrimSpace(raw))
			switch {
			case c.description < 0 && matchesHeader(h, descriptionHeaders):
				c.description = j
			case c.quantity < 0 && matchesHeader(h, quantityHeaders):
				c.quantity = j
			case c.unit < 0 && matchesHeader(h, unitHeaders):
				c.unit = j
			case c.ref < 0 && matchesHeader(h, refHeaders):
				c.ref = j
			}
		}
		if c.description >= 0 && c.quantity >= 0 {
			return c, true
		}
	}
	return columns{}, false
}

func matchesHeader(h string, names []string) bool {
	for _, n := range names {
		if h == n {
			return true
		}
	}
	return false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseQuantity(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// headingStack tracks nested section headings. Numbered refs set the depth
// ("1" top, "1.2" second); upper-case labels start a new top-level section;
// other labels sit under the current top-level section.
type headingStack struct {
	labels []string
}

func (s *headingStack) push(ref, label string) {
	depth := 0
	switch {
	case numberedRef.MatchString(ref):
		depth = strings.Count(strings.TrimSuffix(ref, "."), ".")
	case isUpper(label):
		depth = 0
	case len(s.labels) > 0:
		depth = 1
	}
	if depth > len(s.labels) {
		depth = len(s.labels)
	}
	s.labels = append(s.labels[:depth], label)
}

func (s *headingStack) snapshot() []string {
	if len(s.labels) == 0 {
		return nil
	}
	return append([]string(nil), s.labels...)
}

func isUpper(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 0
}
