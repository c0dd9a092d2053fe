package services

import (
	"context"
	"testing"

	"github.com/AnshRaj112/estatehub-backend/internal/database/databasetest"
	"github.com/AnshRaj112/estatehub-backend/internal/models"
)

func TestValidateContentMatchTypes(t *testing.T) {
	store := databasetest.NewMemoryStore()
	store.AddEntry(models.Entry{Category: models.CategoryContent, Pattern: "Wire Transfer", MatchType: models.MatchContains, Reason: "scam", IsActive: true})
	store.AddEntry(models.Entry{Category: models.CategoryContent, Pattern: "kill", MatchType: models.MatchExact, Reason: "threat", IsActive: true})
	store.AddEntry(models.Entry{Category: models.CategoryContent, Pattern: "guaranteed returns", MatchType: models.MatchExact, Reason: "scam", IsActive: true})
	store.AddEntry(models.Entry{Category: models.CategoryContent, Pattern: `\b\d{3}-\d{3}-\d{4}\b`, MatchType: models.MatchRegex, Reason: "phone", IsActive: true})
	store.AddEntry(models.Entry{Category: models.CategoryContent, Pattern: "([", MatchType: models.MatchRegex, Reason: "broken", IsActive: true})
	store.AddEntry(models.Entry{Category: models.CategoryContent, Pattern: "retired phrase", Reason: "old", IsActive: false})
	svc := newTestBlacklist(store)

	cases := []struct {
		name        string
		text        string
		wantValid   bool
		wantPattern string
	}{
		{"clean text", "Lovely 3BHK apartment near the park.", true, ""},
		{"empty text", "   ", true, ""},
		{"contains ignores case", "Please send a WIRE TRANSFER first", false, "Wire Transfer"},
		{"exact matches whole word", "I will kill this deal", false, "kill"},
		{"exact ignores substrings", "Great skill set required", true, ""},
		{"exact phrase across punctuation", "Guaranteed... returns!", false, "guaranteed returns"},
		{"regex", "Call me on 555-123-4567", false, `\b\d{3}-\d{3}-\d{4}\b`},
		{"inactive filter ignored", "this retired phrase is fine", true, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.ValidateContent(context.Background(), tc.text)
			if got.IsValid != tc.wantValid {
				t.Fatalf("ValidateContent(%q).IsValid = %v, want %v", tc.text, got.IsValid, tc.wantValid)
			}
			if got.BlockedPattern != tc.wantPattern {
				t.Fatalf("BlockedPattern = %q, want %q", got.BlockedPattern, tc.wantPattern)
			}
		})
	}
}

func TestValidateContentCachesFilters(t *testing.T) {
	store := databasetest.NewMemoryStore()
	store.AddEntry(models.Entry{Category: models.CategoryContent, Pattern: "spam", Reason: "spam", IsActive: true})
	svc := newTestBlacklist(store)
	ctx := context.Background()

	svc.ValidateContent(ctx, "first message")
	svc.ValidateContent(ctx, "second message")
	if calls := store.FilterCalls(); calls != 1 {
		t.Fatalf("filter calls = %d, want 1", calls)
	}

	svc.ClearCache()
	svc.ValidateContent(ctx, "third message")
	if calls := store.FilterCalls(); calls != 2 {
		t.Fatalf("filter calls after clear = %d, want 2", calls)
	}
}

func TestValidateContentFailsOpen(t *testing.T) {
	store := databasetest.NewMemoryStore().WithFilterError(errRemoteDown)
	store.AddEntry(models.Entry{Category: models.CategoryContent, Pattern: "spam", Reason: "spam", IsActive: true})
	svc := newTestBlacklist(store)

	if got := svc.ValidateContent(context.Background(), "pure spam"); !got.IsValid {
		t.Fatalf("ValidateContent = %+v, want valid when filters can't load", got)
	}
	svc.ValidateContent(context.Background(), "more spam")
	if calls := store.FilterCalls(); calls != 2 {
		t.Fatalf("filter calls = %d, want 2 (failures must not be cached)", calls)
	}
}

func TestNormalizeWords(t *testing.T) {
	cases := map[string]string{
		"Call NOW!!  free-money": "call now free money",
		"  ":                     "",
		"Ünïcode Straße":         "ünïcode straße",
	}
	for in, want := range cases {
		if got := NormalizeWords(in); got != want {
			t.Errorf("NormalizeWords(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContainsWholePhrase(t *testing.T) {
	cases := []struct {
		text, phrase string
		want         bool
	}{
		{"great skill set", "kill", false},
		{"kill", "kill", true},
		{"i will kill it", "kill", true},
		{"send money now", "money now", true},
		{"send moneynow", "money now", false},
		{"anything", "", false},
	}
	for _, tc := range cases {
		if got := ContainsWholePhrase(tc.text, tc.phrase); got != tc.want {
			t.Errorf("ContainsWholePhrase(%q, %q) = %v, want %v", tc.text, tc.phrase, got, tc.want)
		}
	}
}
