package pipeline

import (
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"server/internal/infra"
)

// FontCatalog resolves the headline typeface through an ordered list of
// candidate font files. The bundled Go Bold face is the guaranteed final
// entry, so compositing can never fail just because the environment is
// missing a font.
type FontCatalog struct {
	font *sfnt.Font
}

// DefaultFontPaths are tried in order before the bundled fallback.
func DefaultFontPaths() []string {
	return []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
	}
}

// NewFontCatalog parses the first loadable candidate, falling back to the
// bundled face. Missing candidates are logged and skipped, never fatal.
func NewFontCatalog(paths []string, logger *infra.Logger) *FontCatalog {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			if logger != nil {
				logger.Warn().Str("path", path).Err(err).Msg("fonts: candidate failed to parse")
			}
			continue
		}
		return &FontCatalog{font: parsed}
	}

	parsed, err := opentype.Parse(gobold.TTF)
	if err != nil {
		// The bundled face is known-good; reaching this means a build
		// problem, and the basicfont path below still keeps us drawing.
		if logger != nil {
			logger.Error().Err(err).Msg("fonts: bundled face failed to parse")
		}
		return &FontCatalog{}
	}
	return &FontCatalog{font: parsed}
}

// Face returns a rendering face at the requested point size. When no
// scalable font is available it degrades to the fixed basic face rather
// than failing the composite.
func (c *FontCatalog) Face(size float64) font.Face {
	if c == nil || c.font == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}
