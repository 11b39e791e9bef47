// Package search ranks base program names against an interactive query.
//
// A case-insensitive substring hit on either the name or the description
// scores SubstringScore. Otherwise the text is scanned once, left to right,
// consuming query characters in order; if the whole query is consumed the
// score is the number of matched characters. Anything else is dropped.
package search

import (
	"sort"
	"strings"
)

// SubstringScore ranks substring hits above every subsequence hit.
const SubstringScore = 1000

// Candidate is one base program and its optional description.
type Candidate struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Match is a scored candidate.
type Match struct {
	Candidate
	Score int `json:"score"`
}

// Rank scores every candidate against query and returns the hits ordered by
// score, highest first. Equal scores keep the candidates' input order.
// An empty query returns no matches.
func Rank(query string, candidates []Candidate) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Match{}
	}

	out := make([]Match, 0)
	for _, c := range candidates {
		best := Score(q, c.Name)
		if c.Description != nil {
			if s := Score(q, *c.Description); s > best {
				best = s
			}
		}
		if best == 0 {
			continue
		}
		out = append(out, Match{Candidate: c, Score: best})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Score rates text against query, case-insensitively. Zero means no match.
func Score(query, text string) int {
	q := []rune(strings.ToLower(query))
	if len(q) == 0 {
		return 0
	}
	t := strings.ToLower(text)
	if strings.Contains(t, string(q)) {
		return SubstringScore
	}

	matched := 0
	for _, r := range t {
		if matched == len(q) {
			break
		}
		if r == q[matched] {
			matched++
		}
	}
	if matched < len(q) {
		return 0
	}
	return matched
}
