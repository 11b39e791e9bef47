// Package program turns raw program identifiers into base program names and
// resolves their human-readable descriptions.
package program

import (
	"regexp"
)

// versionSuffix matches one trailing "_<digits>", "_v<digits>" or
// "_<letter><word chars>" suffix. Because the second alternative also eats
// underscores, "A_b_c" loses "_b_c". Downstream grouping depends on this
// exact behaviour, so it is a heuristic and not a parser.
var versionSuffix = regexp.MustCompile(`(_v?\d+|_[a-zA-Z]\w*)$`)

// blockNumber matches plain "BLOCK-<digits>" names.
var blockNumber = regexp.MustCompile(`^BLOCK-(\d+)$`)

// Normalize strips one version suffix from identifier. Identifiers without
// a suffix, including the empty string, are returned unchanged.
func Normalize(identifier string) string {
	loc := versionSuffix.FindStringIndex(identifier)
	if loc == nil {
		return identifier
	}
	return identifier[:loc[0]]
}

// DescriptionKey returns the translation table key for identifier.
// "BLOCK-<n>" is looked up as "BLOCK-T<n>" when the table has that entry.
func DescriptionKey(identifier string, table map[string]string) string {
	base := Normalize(identifier)
	m := blockNumber.FindStringSubmatch(base)
	if m == nil {
		return base
	}
	candidate := "BLOCK-T" + m[1]
	if _, ok := table[candidate]; ok {
		return candidate
	}
	return base
}

// Describe returns the description for identifier, or false when the table
// has none. A missing description is normal.
func Describe(identifier string, table map[string]string) (string, bool) {
	desc, ok := table[DescriptionKey(identifier, table)]
	return desc, ok
}

// DescribePtr is Describe with the absence encoded as nil, the form used in
// JSON payloads.
func DescribePtr(identifier string, table map[string]string) *string {
	desc, ok := Describe(identifier, table)
	if !ok {
		return nil
	}
	return &desc
}
