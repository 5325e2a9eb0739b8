// Package condition handles wager condition text. The condition is opaque to
// the escrow ledger; this package only extracts the optional category tag
// that routes outcome verification to the right oracle pipeline.
package condition

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Verification categories understood by the outcome oracle.
const (
	CategorySports   = "SPORTS"
	CategoryCrypto   = "CRYPTO"
	CategoryWeather  = "WEATHER"
	CategoryPolitics = "POLITICS"
	CategoryOther    = "OTHER"
)

var validCategories = map[string]bool{
	CategorySports:   true,
	CategoryCrypto:   true,
	CategoryWeather:  true,
	CategoryPolitics: true,
	CategoryOther:    true,
}

// tagRegex matches a leading category tag: [SPORTS] Lakers win game 7
var tagRegex = regexp.MustCompile(`^\[([A-Z]+)\]\s*(.*)$`)

var (
	ErrEmptyCondition  = errors.New("condition: condition text is empty")
	ErrInvalidCategory = errors.New("condition: unsupported category tag")
)

// Parsed is a condition split into its category and free-form text.
type Parsed struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Parse extracts the category tag from a condition string. Untagged
// conditions fall into CategoryOther; an explicit tag must name a known
// category.
func Parse(raw string) (*Parsed, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrEmptyCondition
	}

	matches := tagRegex.FindStringSubmatch(trimmed)
	if matches == nil {
		return &Parsed{Category: CategoryOther, Text: trimmed}, nil
	}

	category := matches[1]
	text := strings.TrimSpace(matches[2])

	if !validCategories[category] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCategory, category)
	}
	if text == "" {
		return nil, ErrEmptyCondition
	}

	return &Parsed{Category: category, Text: text}, nil
}
