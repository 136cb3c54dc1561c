package fieldsync

import (
	"regexp"
	"strings"
)

var (
	separatorRun = regexp.MustCompile(`[\s-]+`)
	unsafeChars  = regexp.MustCompile(`[^a-z0-9_]`)
)

// Normalize turns an admin-supplied field label into a safe document key
// matching [a-z_][a-z0-9_]*. It returns "" when nothing usable remains and
// the caller must skip the field.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = separatorRun.ReplaceAllString(s, "_")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		return ""
	}
	if c := s[0]; !(c >= 'a' && c <= 'z') && c != '_' {
		s = "f_" + s
	}
	return s
}

// IndexName is the deterministic index name for a dynamic field so a later
// sync can find and drop it.
func IndexName(fieldName string) string {
	return "dyn_" + fieldName + "_1"
}
