package copywriter

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// TextService is the slice of the Gemini client the copywriter depends on.
type TextService interface {
	GenerateText(ctx context.Context, instruction string) (string, error)
}

// Brief carries the campaign and product context embedded into the
// copywriting instruction. Aspect ratios are deliberately absent: copy is
// generated once per run, never per ratio.
type Brief struct {
	CampaignMessage    string
	CallToAction       string
	TargetRegion       string
	TargetAudience     string
	ProductName        string
	ProductDescription string
	UserPrompt         string
}

// Generator produces post copy from a Brief via the external text service.
type Generator struct {
	service TextService
	logger  *infra.Logger
}

// NewGenerator constructs a copywriter backed by the given text service.
func NewGenerator(service TextService, logger *infra.Logger) *Generator {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Generator{service: service, logger: logger}
}

type copyPayload struct {
	Headline  string `json:"headline"`
	BodyText  string `json:"body_text"`
	Caption   string `json:"caption"`
	TextColor string `json:"text_color"`
}

// Generate invokes the text service once and parses its response into a
// clamped TextContent. Over-length fields are truncated and an invalid
// accent color is replaced with the documented fallback; a response without
// the required fields fails the whole run.
func (g *Generator) Generate(ctx context.Context, brief Brief) (domain.TextContent, error) {
	raw, err := g.service.GenerateText(ctx, BuildInstruction(brief))
	if err != nil {
		return domain.TextContent{}, fmt.Errorf("%w: %v", domain.ErrTextGeneration, err)
	}

	payload, err := parsePayload[copyPayload](raw)
	if err != nil {
		return domain.TextContent{}, fmt.Errorf("%w: %v", domain.ErrTextGeneration, err)
	}

	var missing []string
	if strings.TrimSpace(payload.Headline) == "" {
		missing = append(missing, "headline")
	}
	if strings.TrimSpace(payload.BodyText) == "" {
		missing = append(missing, "body_text")
	}
	if strings.TrimSpace(payload.Caption) == "" {
		missing = append(missing, "caption")
	}
	if len(missing) > 0 {
		return domain.TextContent{}, fmt.Errorf("%w: response missing fields: %s", domain.ErrTextGeneration, strings.Join(missing, ", "))
	}

	if !domain.ValidAccentColor(strings.TrimSpace(payload.TextColor)) {
		g.logger.Warn().
			Str("text_color", payload.TextColor).
			Msg("copywriter: invalid accent color, using fallback")
	}

	content := domain.TextContent{
		Headline:    payload.Headline,
		BodyText:    payload.BodyText,
		Caption:     payload.Caption,
		AccentColor: payload.TextColor,
	}.Clamp()

	g.logger.Debug().
		Str("headline", content.Headline).
		Str("accent_color", content.AccentColor).
		Msg("copywriter: generated post copy")

	return content, nil
}

// BuildInstruction renders the copywriting instruction, including the output
// schema and the per-field length limits the pipeline enforces afterward.
func BuildInstruction(brief Brief) string {
	sb := &strings.Builder{}
	sb.WriteString("You are a professional social media copywriter specializing in creative ad campaigns.\n")
	sb.WriteString("Generate compelling social media post content based on the following information.\n\n")

	sb.WriteString("CAMPAIGN INFORMATION:\n")
	fmt.Fprintf(sb, "- Campaign Message: %s\n", strings.TrimSpace(brief.CampaignMessage))
	if cta := strings.TrimSpace(brief.CallToAction); cta != "" {
		fmt.Fprintf(sb, "- Call to Action: %s\n", cta)
	}
	fmt.Fprintf(sb, "- Target Region: %s\n", strings.TrimSpace(brief.TargetRegion))
	fmt.Fprintf(sb, "- Target Audience: %s\n\n", strings.TrimSpace(brief.TargetAudience))

	sb.WriteString("PRODUCT INFORMATION:\n")
	fmt.Fprintf(sb, "- Product Name: %s\n", strings.TrimSpace(brief.ProductName))
	if desc := strings.TrimSpace(brief.ProductDescription); desc != "" {
		fmt.Fprintf(sb, "- Product Description: %s\n", desc)
	}
	sb.WriteString("\nUSER REQUEST:\n")
	fmt.Fprintf(sb, "%s\n\n", strings.TrimSpace(brief.UserPrompt))

	sb.WriteString("OUTPUT REQUIREMENTS:\n")
	fmt.Fprintf(sb, "Respond strictly with a JSON object matching this schema: ")
	sb.WriteString(`{"headline":string,"body_text":string,"caption":string,"text_color":string}`)
	fmt.Fprintf(sb, ". The headline must be at most %d characters, body_text at most %d characters, caption at most %d characters.\n", domain.MaxHeadlineLen, domain.MaxBodyTextLen, domain.MaxCaptionLen)
	sb.WriteString("The text_color must be a #RRGGBB hex color for the headline plate: bold, vibrant, high contrast for white text.\n")
	sb.WriteString("Match the tone to the target audience and the primary language of the region (English if Global). ")
	sb.WriteString("Use active voice, focus on benefits, keep it concise. Return ONLY the JSON object, no extra text.")
	return sb.String()
}
