package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"furnishAi/internal/llm"
	"furnishAi/internal/media"
	"furnishAi/internal/prompts"
	"furnishAi/internal/storage"
)

// ErrNoBlendedImage means the image model answered without any image data.
var ErrNoBlendedImage = errors.New("AI did not return a blended image")

// Image is a generated picture.
type Image struct {
	MIME string
	Data []byte
}

// DataURI renders the image for direct use in an <img> src.
func (i Image) DataURI() string {
	return media.DataURI(i.MIME, i.Data)
}

// ProductSource resolves a product image URL to JPEG bytes.
type ProductSource interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// Blender composites a suggested item into the room photo with the image model.
type Blender struct {
	models   llm.ContentGenerator
	model    string
	products ProductSource
	logger   *slog.Logger
}

// NewBlender constructs a blender. An empty model uses llm.DefaultImageModel.
func NewBlender(models llm.ContentGenerator, model string, products ProductSource, logger *slog.Logger) *Blender {
	if strings.TrimSpace(model) == "" {
		model = llm.DefaultImageModel
	}
	if products == nil {
		products = NewProductFetcher(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Blender{
		models:   models,
		model:    model,
		products: products,
		logger:   logger,
	}
}

// Blend returns the room with item placed in it.
func (b *Blender) Blend(ctx context.Context, roomJPEG []byte, item storage.FurnitureSuggestion) (Image, error) {
	if len(roomJPEG) == 0 {
		return Image{}, errors.New("vision: room image is required")
	}

	product, err := b.products.Fetch(ctx, item.ImageURL)
	if err != nil {
		return Image{}, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(roomJPEG, "image/jpeg"),
			genai.NewPartFromBytes(product, "image/jpeg"),
			genai.NewPartFromText(prompts.Blend(item)),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := b.models.GenerateContent(ctx, b.model, contents, config)
	if err != nil {
		return Image{}, fmt.Errorf("vision: blend: %w", err)
	}

	img, ok := firstInlineImage(resp)
	if !ok {
		b.logger.Warn("blend returned no image", "model", b.model, "item", item.Name, "text", truncate(responseText(resp), 200))
		return Image{}, ErrNoBlendedImage
	}
	return img, nil
}

// firstInlineImage scans candidates in order; the first non-empty image part wins.
func firstInlineImage(resp *genai.GenerateContentResponse) (Image, bool) {
	if resp == nil {
		return Image{}, false
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mimeType := strings.TrimSpace(part.InlineData.MIMEType)
			if mimeType == "" {
				mimeType = "image/png"
			}
			if !strings.HasPrefix(mimeType, "image/") {
				continue
			}
			return Image{MIME: mimeType, Data: part.InlineData.Data}, true
		}
	}
	return Image{}, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
