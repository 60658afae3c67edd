package main

import (
	"fmt"
	"strings"
	"unicode"
)

// headingsType selects how column headings are derived from column paths.
type headingsType string

const (
	headingsOCDS           headingsType = "ocds"
	headingsEnRFriendly    headingsType = "en_r_friendly"
	headingsEsRFriendly    headingsType = "es_r_friendly"
	headingsEnUserFriendly headingsType = "en_user_friendly"
	headingsEsUserFriendly headingsType = "es_user_friendly"
)

var headingsTypes = []headingsType{
	headingsOCDS,
	headingsEnRFriendly,
	headingsEsRFriendly,
	headingsEnUserFriendly,
	headingsEsUserFriendly,
}

// parseHeadingsType accepts the empty string as ocds.
func parseHeadingsType(value string) (headingsType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return headingsOCDS, nil
	}
	for _, h := range headingsTypes {
		if string(h) == value {
			return h, nil
		}
	}
	names := make([]string, len(headingsTypes))
	for i, h := range headingsTypes {
		names[i] = string(h)
	}
	return headingsOCDS, fmt.Errorf("unknown headings type %q (use one of %s)", value, strings.Join(names, ", "))
}

func nextHeadingsType(h headingsType) headingsType {
	for i, candidate := range headingsTypes {
		if candidate == h {
			return headingsTypes[(i+1)%len(headingsTypes)]
		}
	}
	return headingsOCDS
}

func (h headingsType) language() string {
	lang, _, found := strings.Cut(string(h), "_")
	if !found {
		return ""
	}
	return lang
}

func (h headingsType) format(label string) string {
	switch h {
	case headingsEnRFriendly, headingsEsRFriendly:
		return transformToR(label)
	}
	return label
}

func transformToR(value string) string {
	return strings.ToLower(strings.ReplaceAll(value, " ", "_"))
}

// headingKey masks array indexes so tenders/items/0/id and
// tenders/items/1/id share one label.
func headingKey(column string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return '*'
		}
		return r
	}, column)
}

// columnHeadings maps each column to its heading. labels holds per-language
// label dictionaries keyed by headingKey; a column without a label keeps its
// own path as the label. ocds produces no headings.
func columnHeadings(h headingsType, columns []string, labels map[string]map[string]string) map[string]string {
	if h == headingsOCDS || len(columns) == 0 {
		return nil
	}
	dict := labels[h.language()]
	headings := make(map[string]string, len(columns))
	for _, col := range columns {
		label, ok := dict[headingKey(col)]
		if !ok {
			label = col
		}
		headings[col] = h.format(label)
	}
	return headings
}

// applyHeadings renames headers and additional columns through headings so
// highlighted columns still line up after relabelling.
func applyHeadings(headers, additional []string, headings map[string]string) ([]string, []string) {
	if len(headings) == 0 {
		return headers, additional
	}
	rename := func(values []string) []string {
		out := make([]string, len(values))
		for i, v := range values {
			if heading, ok := headings[v]; ok {
				out[i] = heading
				continue
			}
			out[i] = v
		}
		return out
	}
	return rename(headers), rename(additional)
}
