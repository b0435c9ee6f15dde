package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"server/internal/domain"
)

const (
	maxRedirects     = 5
	maxFetchBytes    = 20 * 1024 * 1024
	fetchTimeout     = 30 * time.Second
	defaultImageMIME = "image/png"
)

// Loader resolves image references into decoded rasters. Remote fetches cap
// both the redirect chain and the body size; decode failures surface as
// typed errors instead of decoder internals.
type Loader struct {
	mediaRoot  string
	httpClient *http.Client
}

// NewLoader constructs a Loader rooted at mediaRoot for local and public
// references. A nil httpClient gets a default with a bounded redirect chain.
func NewLoader(mediaRoot string, httpClient *http.Client) *Loader {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		}
	}
	return &Loader{mediaRoot: mediaRoot, httpClient: httpClient}
}

// Load resolves one reference into a SourceImage.
func (l *Loader) Load(ctx context.Context, raw string) (domain.SourceImage, error) {
	ref, err := domain.ParseSourceRef(raw)
	if err != nil {
		return domain.SourceImage{}, err
	}

	var data []byte
	switch ref.Kind {
	case domain.SourceURL:
		data, err = l.fetch(ctx, ref.Value)
	default:
		data, err = l.readLocal(ref.Value)
	}
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("%w: %s: %v", domain.ErrSourceLoad, ref, err)
	}

	// Never trust a remote content-type; decoding is the only proof.
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("%w: %s: %v", domain.ErrUnsupportedImageFormat, ref, err)
	}

	return domain.SourceImage{
		Ref:   ref,
		MIME:  mimeForFormat(format),
		Data:  data,
		Image: img,
	}, nil
}

func (l *Loader) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxFetchBytes)
	}
	return data, nil
}

func (l *Loader) readLocal(rel string) ([]byte, error) {
	cleaned := filepath.Clean(strings.TrimLeft(filepath.FromSlash(rel), string(filepath.Separator)))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return nil, errors.New("path escapes media root")
	}
	return os.ReadFile(filepath.Join(l.mediaRoot, cleaned))
}

func mimeForFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "png":
		return "image/png"
	default:
		return defaultImageMIME
	}
}

// sourceCache memoizes decoded rasters per unique reference for the duration
// of one orchestration run, so multiple aspect ratios never re-fetch the
// same source. It is owned by a single run and not safe for concurrent use.
type sourceCache struct {
	loader *Loader
	images map[string]domain.SourceImage
}

func newSourceCache(loader *Loader) *sourceCache {
	return &sourceCache{loader: loader, images: make(map[string]domain.SourceImage)}
}

func (c *sourceCache) Load(ctx context.Context, raw string) (domain.SourceImage, error) {
	if img, ok := c.images[raw]; ok {
		return img, nil
	}
	img, err := c.loader.Load(ctx, raw)
	if err != nil {
		return domain.SourceImage{}, err
	}
	c.images[raw] = img
	return img, nil
}
