package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"furnishAi/internal/llm"
	"furnishAi/internal/prompts"
	"furnishAi/internal/storage"
)

// ErrInvalidSuggestions marks a model response that does not match the suggestion schema.
var ErrInvalidSuggestions = errors.New("vision: invalid suggestions response")

// Suggester asks the text model for furniture grouped by room area.
type Suggester struct {
	models   llm.ContentGenerator
	model    string
	retailer string
	logger   *slog.Logger
}

// NewSuggester constructs a suggester. Empty model and retailer fall back to defaults.
func NewSuggester(models llm.ContentGenerator, model, retailer string, logger *slog.Logger) *Suggester {
	if strings.TrimSpace(model) == "" {
		model = llm.DefaultTextModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Suggester{
		models:   models,
		model:    model,
		retailer: retailer,
		logger:   logger,
	}
}

// Suggest sends the room photo and style and returns validated categories.
func (s *Suggester) Suggest(ctx context.Context, roomJPEG []byte, style string) ([]storage.SuggestionCategory, error) {
	if len(roomJPEG) == 0 {
		return nil, errors.New("vision: room image is required")
	}
	if strings.TrimSpace(style) == "" {
		return nil, errors.New("vision: style is required")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(roomJPEG, "image/jpeg"),
			genai.NewPartFromText(prompts.Suggestion(style, s.retailer)),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   suggestionSchema(),
	}

	resp, err := s.models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("vision: suggestions: %w", err)
	}

	categories, err := parseSuggestions(responseText(resp))
	if err != nil {
		s.logger.Warn("rejected suggestion response", "model", s.model, "error", err)
		return nil, err
	}
	s.logger.Debug("suggestions received", "model", s.model, "categories", len(categories))
	return categories, nil
}

// suggestionSchema is the array-of-categories response schema.
func suggestionSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	item := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":        str("The name of the furniture item, e.g., 'Mid-Century Modern Sofa'."),
			"description": str("A brief one-sentence description of why this item fits the room and style."),
			"material":    str("The primary materials of the furniture, e.g., 'Oak wood and linen fabric'."),
			"url":         str("The direct URL to the product page."),
			"imageUrl":    str("The direct URL to the main product image."),
		},
		Required:         []string{"name", "description", "material", "url", "imageUrl"},
		PropertyOrdering: []string{"name", "description", "material", "url", "imageUrl"},
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"category":    str("The name of the identified area in the room, e.g., 'Main Seating Area' or 'Accent Pieces'."),
				"suggestions": {Type: genai.TypeArray, Items: item},
			},
			Required: []string{"category", "suggestions"},
		},
	}
}

// parseSuggestions rejects anything short of a non-empty list of complete categories.
func parseSuggestions(text string) ([]storage.SuggestionCategory, error) {
	text = stripCodeFence(strings.TrimSpace(text))
	if text == "" {
		return nil, fmt.Errorf("%w: received an empty response", ErrInvalidSuggestions)
	}

	var categories []storage.SuggestionCategory
	if err := json.Unmarshal([]byte(text), &categories); err != nil {
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSuggestions, err)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &categories); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSuggestions, err)
		}
	}

	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidSuggestions)
	}
	for i, category := range categories {
		if strings.TrimSpace(category.Category) == "" {
			return nil, fmt.Errorf("%w: category %d has no name", ErrInvalidSuggestions, i)
		}
		if len(category.Suggestions) == 0 {
			return nil, fmt.Errorf("%w: category %q has no suggestions", ErrInvalidSuggestions, category.Category)
		}
		for j, s := range category.Suggestions {
			if field := missingField(s); field != "" {
				return nil, fmt.Errorf("%w: %q suggestion %d is missing %s", ErrInvalidSuggestions, category.Category, j, field)
			}
		}
	}
	return categories, nil
}

func missingField(s storage.FurnitureSuggestion) string {
	for _, f := range []struct{ name, value string }{
		{"name", s.Name},
		{"description", s.Description},
		{"material", s.Material},
		{"url", s.URL},
		{"imageUrl", s.ImageURL},
	} {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
