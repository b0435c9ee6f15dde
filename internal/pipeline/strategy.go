package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"server/internal/domain"
	"server/internal/providers/genai"
)

// ImageService is the slice of the Gemini client the pipeline needs for
// image generation.
type ImageService interface {
	EditImage(ctx context.Context, req genai.ImageEditRequest) ([]byte, string, error)
}

// BaseRequest describes the one stylization call made per orchestration run.
type BaseRequest struct {
	CampaignMessage string
	Headline        string
	UserPrompt      string
	AspectRatio     string
	Sources         []domain.SourceImage
	RequestID       string
}

// BaseGenerator produces the stylized base raster that every ratio of a run
// derives from.
type BaseGenerator interface {
	GenerateBase(ctx context.Context, req BaseRequest) (image.Image, error)
}

// StrategySelector picks between single-image transformation and multi-image
// composition based on how many sources the run carries, builds the matching
// instruction, and invokes the image service exactly once.
type StrategySelector struct {
	service ImageService
}

// NewStrategySelector constructs a selector over the given image service.
func NewStrategySelector(service ImageService) *StrategySelector {
	return &StrategySelector{service: service}
}

// GenerateBase implements BaseGenerator. It fails closed: any service error
// or undecodable payload surfaces as ErrImageGeneration so a blank raster
// can never reach the compositor.
func (s *StrategySelector) GenerateBase(ctx context.Context, req BaseRequest) (image.Image, error) {
	if len(req.Sources) == 0 {
		return nil, fmt.Errorf("%w: no source images", domain.ErrImageGeneration)
	}

	var instruction string
	if len(req.Sources) == 1 {
		instruction = transformInstruction(req)
	} else {
		instruction = composeInstruction(req)
	}

	images := make([]genai.InlineImage, len(req.Sources))
	for i, src := range req.Sources {
		images[i] = genai.InlineImage{MIME: src.MIME, Data: src.Data}
	}

	data, _, err := s.service.EditImage(ctx, genai.ImageEditRequest{
		Instruction: instruction,
		Images:      images,
		AspectRatio: req.AspectRatio,
		RequestID:   req.RequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageGeneration, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable service output: %v", domain.ErrImageGeneration, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: service returned an empty image", domain.ErrImageGeneration)
	}
	return img, nil
}

// transformInstruction styles a single product photo while keeping the
// subject recognizable.
func transformInstruction(req BaseRequest) string {
	sb := &strings.Builder{}
	sb.WriteString("Transform this product image for a social media marketing campaign while keeping the product clearly recognizable.\n\n")
	sb.WriteString("CAMPAIGN CONTEXT:\n")
	fmt.Fprintf(sb, "- Campaign Message: %s\n", strings.TrimSpace(req.CampaignMessage))
	fmt.Fprintf(sb, "- Post Headline: %s\n", strings.TrimSpace(req.Headline))
	fmt.Fprintf(sb, "- Creative Direction: %s\n\n", strings.TrimSpace(req.UserPrompt))
	sb.WriteString("REQUIREMENTS:\n")
	sb.WriteString("- Keep the product as the main focus and clearly identifiable\n")
	sb.WriteString("- Add campaign-appropriate atmosphere, lighting, and styling\n")
	sb.WriteString("- Enhance visual appeal for social media (vibrant, eye-catching)\n")
	fmt.Fprintf(sb, "- Compose elements to naturally fill the %s aspect ratio without stretching or distortion\n", req.AspectRatio)
	sb.WriteString("- Make it feel professional and on-brand")
	return sb.String()
}

// composeInstruction blends several source images into one cohesive scene.
func composeInstruction(req BaseRequest) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Blend the %d attached images into one cohesive marketing scene for a social media campaign.\n\n", len(req.Sources))
	sb.WriteString("CAMPAIGN CONTEXT:\n")
	fmt.Fprintf(sb, "- Campaign Message: %s\n", strings.TrimSpace(req.CampaignMessage))
	fmt.Fprintf(sb, "- Post Headline: %s\n", strings.TrimSpace(req.Headline))
	fmt.Fprintf(sb, "- Creative Direction: %s\n\n", strings.TrimSpace(req.UserPrompt))
	sb.WriteString("REQUIREMENTS:\n")
	sb.WriteString("- Combine the subjects naturally into a single composition\n")
	sb.WriteString("- Keep each product recognizable; do not warp shapes or logos\n")
	sb.WriteString("- Use consistent lighting and color palette across the scene\n")
	fmt.Fprintf(sb, "- Compose the scene to naturally fill the %s aspect ratio", req.AspectRatio)
	return sb.String()
}

// moodInstruction asks for pure visual mood-board material with no text.
func moodInstruction(prompt string) string {
	sb := &strings.Builder{}
	sb.WriteString("You are creating inspirational creative material for a social media campaign mood board.\n\n")
	sb.WriteString("CRITICAL RULES:\n")
	sb.WriteString("- DO NOT include any text, words, letters, or typography on the image\n")
	sb.WriteString("- Focus purely on visual aesthetics, mood, atmosphere, and emotion\n")
	sb.WriteString("- Create cohesive compositions that blend the reference images naturally\n")
	sb.WriteString("- Emphasize lighting, color palette, and visual storytelling\n\n")
	sb.WriteString("USER CREATIVE DIRECTION:\n")
	fmt.Fprintf(sb, "%s\n\n", strings.TrimSpace(prompt))
	sb.WriteString("Generate a visually stunning mood board image that captures this creative direction.")
	return sb.String()
}

// moodVideoInstruction is the Veo variant of the mood brief.
func moodVideoInstruction(prompt, ratio string, duration int) string {
	sb := &strings.Builder{}
	sb.WriteString("Create inspirational video material for a social media campaign mood board.\n\n")
	sb.WriteString("CRITICAL RULES:\n")
	sb.WriteString("- DO NOT include any text or typography on the video\n")
	sb.WriteString("- Create smooth, cinematic motion with visual coherence throughout\n")
	sb.WriteString("- Focus on atmosphere, emotion, and visual storytelling\n\n")
	sb.WriteString("USER CREATIVE DIRECTION:\n")
	fmt.Fprintf(sb, "%s\n\n", strings.TrimSpace(prompt))
	sb.WriteString("TECHNICAL SPECIFICATIONS:\n")
	fmt.Fprintf(sb, "- Aspect Ratio: %s\n", ratio)
	fmt.Fprintf(sb, "- Duration: %d seconds", duration)
	return sb.String()
}
