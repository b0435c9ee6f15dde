package pipeline

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

const headlineLineSpacing = 1.35

// Compositor builds the final post raster: it fits the stylized base image
// to the target canvas, draws the headline plate, overlays the brand mark,
// and frames the result. It never touches the network and treats cosmetic
// problems (missing font, missing brand mark) as degradations, not errors.
type Compositor struct {
	fonts  *FontCatalog
	logger *infra.Logger
}

// NewCompositor constructs a Compositor with the given font fallback chain.
func NewCompositor(fonts *FontCatalog, logger *infra.Logger) *Compositor {
	if fonts == nil {
		fonts = NewFontCatalog(nil, logger)
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Compositor{fonts: fonts, logger: logger}
}

// ComposePost renders one finished post image. The base raster is cloned
// before any transformation so shared rasters are never mutated; brandMark
// may be nil.
func (c *Compositor) ComposePost(base image.Image, spec domain.CanvasSpec, text domain.TextContent, brandMark image.Image) (image.Image, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: base image is nil", domain.ErrComposite)
	}
	bounds := base.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: base image has zero size", domain.ErrComposite)
	}

	// Scale so the shorter side fills its axis, then center-crop the
	// overflow; the aspect ratio is never distorted and nothing is padded.
	fitted := imaging.Fill(imaging.Clone(base), spec.Width, spec.Height, imaging.Center, imaging.Lanczos)

	dc := gg.NewContext(spec.Width, spec.Height)
	dc.DrawImage(fitted, 0, 0)

	c.drawHeadlinePlate(dc, spec, text)

	if brandMark != nil {
		c.drawBrandMark(dc, spec, brandMark)
	}

	drawFrameBorder(dc, spec)

	return dc.Image(), nil
}

func (c *Compositor) drawHeadlinePlate(dc *gg.Context, spec domain.CanvasSpec, text domain.TextContent) {
	headline := strings.TrimSpace(text.Headline)
	if headline == "" {
		return
	}

	face := c.fonts.Face(spec.HeadlineSize)
	dc.SetFontFace(face)

	maxTextWidth := float64(spec.Width)*spec.TextMaxWidth - 2*float64(spec.PlatePadding)
	lines := wrapLines(dc, headline, maxTextWidth)

	lineHeight := dc.FontHeight() * headlineLineSpacing
	var blockWidth float64
	for _, line := range lines {
		w, _ := dc.MeasureString(line)
		if w > blockWidth {
			blockWidth = w
		}
	}
	blockHeight := lineHeight * float64(len(lines))

	centerX := float64(spec.Width) * spec.TextCenterX
	centerY := float64(spec.Height) * spec.TextCenterY
	padding := float64(spec.PlatePadding)

	plateX := centerX - blockWidth/2 - padding
	plateY := centerY - blockHeight/2 - padding
	plateW := blockWidth + 2*padding
	plateH := blockHeight + 2*padding

	accent := text.AccentColor
	if !domain.ValidAccentColor(accent) {
		accent = domain.FallbackAccentColor
	}

	dc.SetHexColor(accent)
	dc.DrawRectangle(plateX, plateY, plateW, plateH)
	dc.FillPreserve()
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(float64(spec.PlateBorder))
	dc.Stroke()

	// White fill with a dark outline keeps the headline legible on any
	// accent color.
	for i, line := range lines {
		y := centerY - blockHeight/2 + lineHeight*(float64(i)+0.5)
		dc.SetRGB(0, 0, 0)
		for _, off := range [][2]float64{{-2, 0}, {2, 0}, {0, -2}, {0, 2}} {
			dc.DrawStringAnchored(line, centerX+off[0], y+off[1], 0.5, 0.5)
		}
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(line, centerX, y, 0.5, 0.5)
	}
}

func (c *Compositor) drawBrandMark(dc *gg.Context, spec domain.CanvasSpec, mark image.Image) {
	bounds := mark.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		c.logger.Warn().Msg("compositor: skipping zero-size brand mark")
		return
	}
	scaled := imaging.Fit(imaging.Clone(mark), spec.BrandMarkSize, spec.BrandMarkSize, imaging.Lanczos)
	x := spec.Width - scaled.Bounds().Dx() - spec.BrandMarkOffset
	y := spec.Height - scaled.Bounds().Dy() - spec.BrandMarkOffset
	dc.DrawImage(scaled, x, y)
}

// drawFrameBorder paints a solid border as the last drawing step so it
// overlays every other element.
func drawFrameBorder(dc *gg.Context, spec domain.CanvasSpec) {
	w := float64(spec.Width)
	h := float64(spec.Height)
	t := float64(spec.FrameBorder)
	dc.SetRGB(0, 0, 0)
	dc.DrawRectangle(0, 0, w, t)
	dc.DrawRectangle(0, h-t, w, t)
	dc.DrawRectangle(0, 0, t, h)
	dc.DrawRectangle(w-t, 0, t, h)
	dc.Fill()
}

// wrapLines greedily wraps the text so each rendered line fits maxWidth.
// A single word wider than maxWidth becomes its own line rather than being
// broken mid-word. The result is fully determined by the text, the face,
// and maxWidth.
func wrapLines(dc *gg.Context, text string, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if w, _ := dc.MeasureString(candidate); w > maxWidth {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	lines = append(lines, current)
	return lines
}
