package constants

import "strings"

// AllowedWorkbookExtensions holds the extensions accepted for BOQ intake.
var AllowedWorkbookExtensions = map[string]struct{}{
	"xlsx": {},
	"xlsm": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsWorkbook reports whether ext (with or without dot) is an accepted workbook.
func IsWorkbook(ext string) bool {
	_, ok := AllowedWorkbookExtensions[NormalizeExt(ext)]
	return ok
}
