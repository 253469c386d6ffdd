package suggest

import (
	"context"
	"strings"
	"testing"

	"featlab/internal/domain"
)

func TestParseSuggestion(t *testing.T) {
	raw := `{"description": "Features about punctuation in code", "category": "noisy", "confidence": 0.8}`
	s, err := parseSuggestion(raw, []string{"ambiguous", "noisy", "redundant"})
	if err != nil {
		t.Fatalf("parseSuggestion failed: %v", err)
	}
	if s.Description != "Features about punctuation in code" {
		t.Fatalf("description = %q", s.Description)
	}
	if s.Category != "noisy" || s.Confidence != 0.8 {
		t.Fatalf("suggestion = %+v", s)
	}
}

func TestParseSuggestionStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"description\": \"d\", \"category\": \"ambiguous\", \"confidence\": 0.5}\n```"
	s, err := parseSuggestion(raw, []string{"ambiguous"})
	if err != nil {
		t.Fatalf("parseSuggestion failed: %v", err)
	}
	if s.Category != "ambiguous" {
		t.Fatalf("category = %q", s.Category)
	}
}

func TestParseSuggestionDropsUnknownCategory(t *testing.T) {
	raw := `{"description": "d", "category": "made-up", "confidence": 0.9}`
	s, err := parseSuggestion(raw, []string{"ambiguous", "noisy"})
	if err != nil {
		t.Fatalf("parseSuggestion failed: %v", err)
	}
	if s.Category != "" {
		t.Fatalf("category = %q, want empty for an invented name", s.Category)
	}
}

func TestParseSuggestionRejectsProse(t *testing.T) {
	if _, err := parseSuggestion("Sure! Here is the summary you asked for.", nil); err == nil {
		t.Fatalf("expected a parse error for non-JSON output")
	}
}

func TestBuildPromptsTruncatesFeatureList(t *testing.T) {
	features := make([]domain.Feature, 60)
	for i := range features {
		features[i] = domain.Feature{ID: i + 1, Label: "feature"}
	}
	_, userPrompt := buildPrompts("≥ 0.60", features, []string{"noisy"})

	if !strings.Contains(userPrompt, "... and 20 more") {
		t.Fatalf("long feature list not truncated:\n%s", userPrompt)
	}
	if !strings.Contains(userPrompt, "≥ 0.60") {
		t.Fatalf("range label missing from prompt")
	}
}

func TestBuildPromptsMarksUnlabeledFeatures(t *testing.T) {
	_, userPrompt := buildPrompts("all", []domain.Feature{{ID: 7}}, nil)
	if !strings.Contains(userPrompt, "(unlabeled)") {
		t.Fatalf("unlabeled feature not marked:\n%s", userPrompt)
	}
}

func TestDraftLabelRequiresAPIKey(t *testing.T) {
	_, err := DraftLabel(context.Background(), "", "model", "all", []domain.Feature{{ID: 1}}, nil)
	if err == nil {
		t.Fatalf("expected an error without an API key")
	}
}
