package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Field length limits for generated post copy. Values exceeding a limit are
// truncated rather than rejected so one verbose model response does not sink
// an otherwise usable run.
const (
	MaxHeadlineLen = 60
	MaxBodyTextLen = 280
	MaxCaptionLen  = 150
)

// FallbackAccentColor is substituted whenever the model returns something
// that is not a #RRGGBB value.
const FallbackAccentColor = "#FF4081"

// MaxSourcePayloadBytes caps the cumulative size of all source images per
// generation run. Requests above the cap are rejected before any generation
// call is made.
const MaxSourcePayloadBytes = 17 * 1024 * 1024

// MaxAspectRatios bounds how many ratios a single post or mood-image run may
// request.
const MaxAspectRatios = 3

var accentColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// GenerationContext is the immutable input bundle for one orchestration run.
// It is owned exclusively by that run and never shared across goroutines.
type GenerationContext struct {
	CampaignName       string
	CampaignMessage    string
	CallToAction       string
	TargetRegion       string
	TargetAudience     string
	ProductName        string
	ProductDescription string
	Prompt             string
	SourceImages       []string
	BrandImage         string
	AspectRatios       []string
}

// NormalizedRatios validates and deduplicates the requested aspect ratios,
// preserving caller order. Unknown ratios and empty or oversized sets are
// hard validation errors.
func (g GenerationContext) NormalizedRatios() ([]string, error) {
	if len(g.AspectRatios) == 0 {
		return nil, fmt.Errorf("%w: at least one aspect ratio is required", ErrInvalidAspectRatio)
	}
	seen := make(map[string]struct{}, len(g.AspectRatios))
	var ratios []string
	for _, ratio := range g.AspectRatios {
		ratio = strings.TrimSpace(ratio)
		if _, ok := CanvasFor(ratio); !ok {
			return nil, fmt.Errorf("%w: %q (must be one of %s)", ErrInvalidAspectRatio, ratio, strings.Join(PostAspectRatios(), ", "))
		}
		if _, ok := seen[ratio]; ok {
			continue
		}
		seen[ratio] = struct{}{}
		ratios = append(ratios, ratio)
	}
	if len(ratios) > MaxAspectRatios {
		return nil, fmt.Errorf("%w: at most %d aspect ratios per run", ErrInvalidAspectRatio, MaxAspectRatios)
	}
	return ratios, nil
}

// TextContent is the copy generated once per run and composited onto every
// requested ratio.
type TextContent struct {
	Headline    string `json:"headline"`
	BodyText    string `json:"body_text"`
	Caption     string `json:"caption"`
	AccentColor string `json:"accent_color"`
}

// Clamp trims whitespace, truncates over-length fields, and substitutes the
// fallback accent color when the model returned an invalid one.
func (t TextContent) Clamp() TextContent {
	t.Headline = truncateRunes(strings.TrimSpace(t.Headline), MaxHeadlineLen)
	t.BodyText = truncateRunes(strings.TrimSpace(t.BodyText), MaxBodyTextLen)
	t.Caption = truncateRunes(strings.TrimSpace(t.Caption), MaxCaptionLen)
	t.AccentColor = strings.TrimSpace(t.AccentColor)
	if !accentColorPattern.MatchString(t.AccentColor) {
		t.AccentColor = FallbackAccentColor
	}
	return t
}

// ValidAccentColor reports whether the value is a well-formed #RRGGBB string.
func ValidAccentColor(value string) bool {
	return accentColorPattern.MatchString(value)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// CompositeResult records the outcome for one requested aspect ratio. The
// orchestrator returns one entry per ratio in caller order; partial success
// is a valid terminal state.
type CompositeResult struct {
	AspectRatio string `json:"aspect_ratio"`
	ImagePath   string `json:"image_path,omitempty"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// GenerationRecord is the aggregate produced by one orchestration run. It is
// immutable once returned.
type GenerationRecord struct {
	ID        string            `json:"id"`
	Text      TextContent       `json:"text"`
	Prompt    string            `json:"prompt"`
	Results   []CompositeResult `json:"results"`
	CreatedAt time.Time         `json:"created_at"`
}

// ImagePathFor returns the persisted path for the given ratio, if that ratio
// succeeded.
func (r GenerationRecord) ImagePathFor(ratio string) string {
	for _, res := range r.Results {
		if res.AspectRatio == ratio && res.Success {
			return res.ImagePath
		}
	}
	return ""
}
