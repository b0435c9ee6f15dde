package domain

import "strings"

// CanvasSpec holds the per-ratio layout constants used by the compositor.
// All values are pixels except the fractional text anchors.
type CanvasSpec struct {
	AspectRatio  string
	Width        int
	Height       int
	HeadlineSize float64

	// Anchor for the headline plate as fractions of the canvas. Square and
	// vertical canvases use a bottom band, landscape uses a side band.
	TextCenterX float64
	TextCenterY float64
	// TextMaxWidth bounds the wrapped headline block, as a fraction of the
	// canvas width.
	TextMaxWidth float64

	PlatePadding int
	PlateBorder  int
	FrameBorder  int

	BrandMarkSize   int
	BrandMarkOffset int
}

var canvasSpecs = map[string]CanvasSpec{
	"1:1": {
		AspectRatio:  "1:1",
		Width:        1080,
		Height:       1080,
		HeadlineSize: 64,
		TextCenterX:  0.5,
		TextCenterY:  0.8,
		TextMaxWidth: 1.0,

		PlatePadding: 20,
		PlateBorder:  3,
		FrameBorder:  8,

		BrandMarkSize:   150,
		BrandMarkOffset: 30,
	},
	"16:9": {
		AspectRatio:  "16:9",
		Width:        1920,
		Height:       1080,
		HeadlineSize: 72,
		TextCenterX:  0.65,
		TextCenterY:  0.4,
		TextMaxWidth: 0.3,

		PlatePadding: 20,
		PlateBorder:  3,
		FrameBorder:  8,

		BrandMarkSize:   150,
		BrandMarkOffset: 30,
	},
	"9:16": {
		AspectRatio:  "9:16",
		Width:        1080,
		Height:       1920,
		HeadlineSize: 56,
		TextCenterX:  0.5,
		TextCenterY:  0.75,
		TextMaxWidth: 1.0,

		PlatePadding: 20,
		PlateBorder:  3,
		FrameBorder:  8,

		BrandMarkSize:   120,
		BrandMarkOffset: 30,
	},
}

// CanvasFor looks up the layout constants for a post aspect ratio.
func CanvasFor(ratio string) (CanvasSpec, bool) {
	spec, ok := canvasSpecs[strings.TrimSpace(ratio)]
	return spec, ok
}

// PostAspectRatios lists the supported post ratios in a stable order.
func PostAspectRatios() []string {
	return []string{"1:1", "16:9", "9:16"}
}

// FileLabel converts an aspect ratio into its filesystem-safe form, with the
// colon replaced by a hyphen ("16:9" -> "16-9").
func FileLabel(ratio string) string {
	return strings.ReplaceAll(strings.TrimSpace(ratio), ":", "-")
}
