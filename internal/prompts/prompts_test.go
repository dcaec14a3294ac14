package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"furnishAi/internal/storage"
)

func TestSuggestion(t *testing.T) {
	got := Suggestion("Scandinavian", "")
	assert.Contains(t, got, "preferred style of 'Scandinavian'")
	assert.Contains(t, got, "exclusively from the website https://deltafurnishers.com.")
	assert.Contains(t, got, "'imageUrl' field")

	got = Suggestion("  ", "https://shop.example.com")
	assert.Contains(t, got, "'Modern Minimalist'")
	assert.Contains(t, got, "https://shop.example.com")
}

func TestBlend(t *testing.T) {
	got := Blend(storage.FurnitureSuggestion{
		Name:        "Oak Side Table",
		Description: "Compact round table",
		Material:    "Solid oak",
	})
	assert.Contains(t, got, "Oak Side Table (Compact round table)")
	assert.Contains(t, got, "material (Solid oak)")

	assert.Contains(t, Blend(storage.FurnitureSuggestion{Name: "Lamp"}), "material (as shown)")
}
