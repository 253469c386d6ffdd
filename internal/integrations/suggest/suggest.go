// Package suggest drafts human-readable group labels with an LLM. Output
// is advisory only: nothing here ever writes into the selection ledger.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"featlab/internal/domain"
)

const maxFeatureLines = 40

// Suggestion is a drafted description for a group of features, plus a
// suggested cause category when one of the configured names fits.
type Suggestion struct {
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
}

// DraftLabel asks the model for a short description of what a group of
// features has in common, given their existing labels and the bin path
// that produced the group.
func DraftLabel(ctx context.Context, apiKey, model, rangeLabel string, features []domain.Feature, categories []string) (Suggestion, error) {
	if apiKey == "" {
		return Suggestion{}, fmt.Errorf("anthropic_api_key is not configured")
	}
	if len(features) == 0 {
		return Suggestion{}, fmt.Errorf("no features to describe")
	}

	systemPrompt, userPrompt := buildPrompts(rangeLabel, features, categories)
	responseText, err := callAnthropic(ctx, apiKey, model, systemPrompt, userPrompt)
	if err != nil {
		return Suggestion{}, err
	}
	return parseSuggestion(responseText, categories)
}

func buildPrompts(rangeLabel string, features []domain.Feature, categories []string) (string, string) {
	systemPrompt := "You summarize groups of interpretability features. " +
		"Respond with a single JSON object: " +
		`{"description": "<one sentence>", "category": "<one of the listed categories or empty>", "confidence": <0..1>}. ` +
		"No prose outside the JSON."

	var lines strings.Builder
	for i, f := range features {
		if i >= maxFeatureLines {
			lines.WriteString(fmt.Sprintf("... and %d more\n", len(features)-maxFeatureLines))
			break
		}
		label := f.Label
		if label == "" {
			label = "(unlabeled)"
		}
		lines.WriteString(fmt.Sprintf("ID:%d - %s\n", f.ID, label))
	}

	userPrompt := fmt.Sprintf(
		"Metric range: %s\nCandidate cause categories: %s\n\nFeatures:\n%s",
		rangeLabel, strings.Join(categories, ", "), lines.String(),
	)
	return systemPrompt, userPrompt
}

func callAnthropic(ctx context.Context, apiKey, model, systemPrompt, userPrompt string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("suggest anthropic error: %v", err)
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("suggest anthropic response size=%d tokens_in=%d tokens_out=%d",
				len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

func parseSuggestion(responseText string, categories []string) (Suggestion, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var s Suggestion
	if err := json.Unmarshal([]byte(responseText), &s); err != nil {
		return Suggestion{}, fmt.Errorf("parsing suggestion response: %w (response: %s)", err, responseText)
	}
	s.Description = strings.TrimSpace(s.Description)
	s.Category = strings.TrimSpace(s.Category)

	// Drop category names the model invented.
	valid := false
	for _, c := range categories {
		if s.Category == c {
			valid = true
			break
		}
	}
	if !valid {
		s.Category = ""
	}
	return s, nil
}
