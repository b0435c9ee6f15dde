package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
)

// PostGenerator runs one post generation pipeline end to end.
type PostGenerator interface {
	Generate(ctx context.Context, gc domain.GenerationContext) (*domain.GenerationRecord, error)
}

// MoodGenerator produces mood-board stills and clips.
type MoodGenerator interface {
	GenerateMoodImages(ctx context.Context, req pipeline.MoodImagesRequest) ([]domain.MoodMedia, error)
	GenerateMoodVideo(ctx context.Context, req pipeline.MoodVideoRequest) (*domain.MoodMedia, error)
}

// PostRepository persists generation records. May be nil when the service
// runs without a database.
type PostRepository interface {
	Save(ctx context.Context, record domain.GenerationRecord) error
}

// MoodRepository persists mood media metadata. May be nil.
type MoodRepository interface {
	Save(ctx context.Context, media domain.MoodMedia) error
	ListByCampaign(ctx context.Context, campaignName string, limit int) ([]domain.MoodMedia, error)
}

// App bundles the handler dependencies.
type App struct {
	Logger   infra.Logger
	Posts    PostGenerator
	Moods    MoodGenerator
	PostRepo PostRepository
	MoodRepo MoodRepository

	// MediaRoot is the on-disk root that local image references resolve
	// against. BrandDir, relative to MediaRoot, optionally holds brand mark
	// rasters; when a request carries no brand image, one is picked from
	// there at random.
	MediaRoot string
	BrandDir  string
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

// fail maps domain errors onto HTTP status codes: caller mistakes are 4xx,
// upstream generation failures are 502, everything else is 500.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAspectRatio),
		errors.Is(err, domain.ErrPayloadTooLarge),
		errors.Is(err, domain.ErrSourceLoad),
		errors.Is(err, domain.ErrUnsupportedImageFormat):
		a.error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrTextGeneration),
		errors.Is(err, domain.ErrImageGeneration):
		a.error(w, http.StatusBadGateway, err.Error())
	default:
		a.error(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
