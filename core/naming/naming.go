// Package naming converts between external lowerCamelCase field keys
// and stored snake_case column keys, and normalizes date values for
// external exposure. All functions are pure; no registry lookups.
package naming

import (
	"strings"
	"time"
	"unicode"
)

// ToStored converts an external lowerCamelCase key to its stored
// snake_case form: an underscore is inserted before each uppercase
// letter and the letter is lowercased. Digits pass through unchanged.
func ToStored(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToExternal converts a stored snake_case key to its external
// lowerCamelCase form: each underscore is removed and the following
// letter uppercased.
func ToExternal(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	upper := false
	for _, r := range key {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dateLayouts are store-native temporal representations we recognize,
// most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeDate renders a date-like value as a fixed "YYYY-MM-DD"
// string so clients never observe timezone-shifted values. The second
// return is false when the value is not recognizably date-like.
func NormalizeDate(v any) (string, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02"), true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.Format("2006-01-02"), true
			}
		}
		return "", false
	case []byte:
		return NormalizeDate(string(t))
	default:
		return "", false
	}
}
