package condition_test

import (
	"errors"
	"testing"

	"github.com/wagerx/escrow-engine/internal/condition"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantCategory string
		wantText     string
		wantErr      error
	}{
		{
			name:         "tagged sports condition",
			raw:          "[SPORTS] Lakers win game 7",
			wantCategory: condition.CategorySports,
			wantText:     "Lakers win game 7",
		},
		{
			name:         "tagged crypto condition",
			raw:          "[CRYPTO] BTC closes above 100k on Dec 31",
			wantCategory: condition.CategoryCrypto,
			wantText:     "BTC closes above 100k on Dec 31",
		},
		{
			name:         "untagged falls back to other",
			raw:          "it rains in Nairobi tomorrow",
			wantCategory: condition.CategoryOther,
			wantText:     "it rains in Nairobi tomorrow",
		},
		{
			name:         "surrounding whitespace trimmed",
			raw:          "  [WEATHER]   snow before noon  ",
			wantCategory: condition.CategoryWeather,
			wantText:     "snow before noon",
		},
		{
			name:    "unknown tag rejected",
			raw:     "[ALIENS] first contact this year",
			wantErr: condition.ErrInvalidCategory,
		},
		{
			name:    "empty condition rejected",
			raw:     "   ",
			wantErr: condition.ErrEmptyCondition,
		},
		{
			name:    "tag without text rejected",
			raw:     "[SPORTS]",
			wantErr: condition.ErrEmptyCondition,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := condition.Parse(tc.raw)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if parsed.Category != tc.wantCategory {
				t.Errorf("category: got %s, want %s", parsed.Category, tc.wantCategory)
			}
			if parsed.Text != tc.wantText {
				t.Errorf("text: got %q, want %q", parsed.Text, tc.wantText)
			}
		})
	}
}
