package prompts

import (
	"fmt"
	"strings"

	"furnishAi/internal/storage"
)

// DefaultRetailer is the catalogue suggestions are drawn from.
const DefaultRetailer = "https://deltafurnishers.com"

const suggestionTemplate = `Based on the attached image of a room and the user's preferred style of '%s', act as an interior designer. ` +
	`First, analyze the image to identify distinct areas or potential uses of space (e.g., 'main seating area', 'empty corner', 'workspace'). ` +
	`Then, for each identified area, suggest 1-2 relevant furniture items exclusively from the website %s. ` +
	`Group your suggestions by the area you identified. ` +
	`For each item, provide its name, a brief description, its material, the product page URL, ` +
	`and ensure you include the direct URL for the main product image, which should populate the 'imageUrl' field in the JSON response.`

const blendTemplate = `The first image is a photo of a room. The second image is a product photo of a piece of furniture: %s.
Place this exact item into the room so that it looks like it was photographed there.
Requirements:
- Keep the room itself unchanged: same walls, floor, lighting, camera angle and framing.
- Keep the item's shape, color and material (%s) faithful to the product photo.
- Choose a plausible spot and a realistic scale relative to the room.
- Match perspective, shadows and lighting of the room.
Return only the edited room image.`

// Suggestion builds the designer prompt for a style. An empty retailer uses DefaultRetailer.
func Suggestion(style, retailer string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		style = storage.DefaultStyle
	}
	retailer = strings.TrimSpace(retailer)
	if retailer == "" {
		retailer = DefaultRetailer
	}
	return fmt.Sprintf(suggestionTemplate, style, retailer)
}

// Blend builds the compositing instruction for a chosen item.
func Blend(item storage.FurnitureSuggestion) string {
	name := strings.TrimSpace(item.Name)
	if desc := strings.TrimSpace(item.Description); desc != "" {
		name = fmt.Sprintf("%s (%s)", name, desc)
	}
	material := strings.TrimSpace(item.Material)
	if material == "" {
		material = "as shown"
	}
	return fmt.Sprintf(blendTemplate, name, material)
}
