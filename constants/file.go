package constants

import "strings"

// AllowedExtensions holds the file extensions accepted as invoice input.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsInvoiceExt reports whether ext (with or without dot) is an accepted invoice format.
func IsInvoiceExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// BackupTimestampLayout names backup folders, e.g. 20250131_142501.
const BackupTimestampLayout = "20060102_150405"
