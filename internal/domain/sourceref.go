package domain

import (
	"fmt"
	"image"
	"strings"
)

// SourceKind tags how an image reference should be resolved.
type SourceKind string

const (
	// SourceURL is an absolute remote URL fetched over HTTP.
	SourceURL SourceKind = "url"
	// SourceLocalPath is a path relative to the managed media root.
	SourceLocalPath SourceKind = "local"
	// SourcePublicPath is an already-served path ("/static/...") produced by
	// an earlier run; it resolves under the media root after stripping the
	// public prefix.
	SourcePublicPath SourceKind = "public"
)

// PublicPathPrefix is the URL prefix under which the media root is served.
const PublicPathPrefix = "/static/"

// SourceRef is an image reference resolved once at ingestion instead of being
// re-sniffed by prefix checks throughout the pipeline.
type SourceRef struct {
	Kind  SourceKind
	Value string
}

// ParseSourceRef classifies a raw reference string.
func ParseSourceRef(raw string) (SourceRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SourceRef{}, fmt.Errorf("%w: empty image reference", ErrSourceLoad)
	}
	switch {
	case strings.HasPrefix(trimmed, "http://"), strings.HasPrefix(trimmed, "https://"):
		return SourceRef{Kind: SourceURL, Value: trimmed}, nil
	case strings.HasPrefix(trimmed, PublicPathPrefix):
		return SourceRef{Kind: SourcePublicPath, Value: strings.TrimPrefix(trimmed, PublicPathPrefix)}, nil
	default:
		return SourceRef{Kind: SourceLocalPath, Value: strings.TrimPrefix(trimmed, "/")}, nil
	}
}

// String returns the original-style reference for logging.
func (r SourceRef) String() string {
	if r.Kind == SourcePublicPath {
		return PublicPathPrefix + r.Value
	}
	return r.Value
}

// SourceImage is a decoded source raster together with its origin and the
// encoded bytes sent to the image-generation service. The raster is shared
// read-only within a run; compositing stages must work on copies.
type SourceImage struct {
	Ref   SourceRef
	MIME  string
	Data  []byte
	Image image.Image
}

// Size returns the encoded byte size, used for the cumulative payload cap.
func (s SourceImage) Size() int {
	return len(s.Data)
}
