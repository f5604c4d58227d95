package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/hirepilot/hirepilot/pkg/llm"
)

// GenerateImage renders still images via Imagen. Results hosted by the
// provider come back as URIs; inline bytes are wrapped as data URLs so the
// asset content stays a plain string either way.
func (a *Adapter) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	count := req.Count
	if count <= 0 {
		count = 1
	}

	rec := llm.TrafficRecord{
		TaskType:       "image_generation",
		Vendor:         vendor,
		Model:          req.Model,
		RequestPreview: llm.Preview(req.Prompt),
		At:             time.Now().UTC(),
	}

	resp, err := a.client.Models.GenerateImages(ctx, req.Model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(count),
	})
	if err != nil {
		rec.ErrorReason = "provider_error"
		a.record(ctx, rec)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &llm.ImageResponse{Error: &llm.ProviderError{
			Reason:     "provider_error",
			Message:    err.Error(),
			RawPreview: llm.Preview(err.Error()),
		}}, nil
	}

	var urls []string
	for _, img := range resp.GeneratedImages {
		if img.Image == nil {
			continue
		}
		if img.Image.GCSURI != "" {
			urls = append(urls, img.Image.GCSURI)
			continue
		}
		if len(img.Image.ImageBytes) > 0 {
			mime := img.Image.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			urls = append(urls, "data:"+mime+";base64,"+
				base64.StdEncoding.EncodeToString(img.Image.ImageBytes))
		}
	}
	rec.ResponsePreview = fmt.Sprintf("images=%d", len(urls))
	a.record(ctx, rec)
	return &llm.ImageResponse{URLs: urls}, nil
}
