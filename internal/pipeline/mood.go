package pipeline

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/genai"
)

// VideoService is the slice of the Gemini client mood video generation needs.
type VideoService interface {
	GenerateVideo(ctx context.Context, req genai.VideoRequest) ([]byte, string, error)
}

// MoodImagesRequest asks for text-free mood-board stills blended from up to
// MaxMoodSourceImages reference images.
type MoodImagesRequest struct {
	CampaignName string
	Prompt       string
	SourceImages []string
	AspectRatios []string
}

// MoodVideoRequest asks for one short mood-board clip, optionally seeded with
// a single reference image.
type MoodVideoRequest struct {
	CampaignName    string
	Prompt          string
	ReferenceImage  string
	AspectRatio     string
	DurationSeconds int
}

// MoodService generates mood-board stills and clips. Unlike the post
// orchestrator it fails fast: mood runs are exploratory one-offs, so the
// first bad ratio aborts the batch instead of being aggregated.
type MoodService struct {
	images     ImageService
	videos     VideoService
	loader     *Loader
	store      BlobStore
	imageModel string
	videoModel string
	logger     infra.Logger
	now        func() time.Time
}

// NewMoodService wires the mood media generators.
func NewMoodService(images ImageService, videos VideoService, loader *Loader, store BlobStore, imageModel, videoModel string, logger *infra.Logger) *MoodService {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &MoodService{
		images:     images,
		videos:     videos,
		loader:     loader,
		store:      store,
		imageModel: imageModel,
		videoModel: videoModel,
		logger:     *logger,
		now:        time.Now,
	}
}

// GenerateMoodImages produces one still per requested ratio, persisting each
// under moods/ with a date-stamped name.
func (s *MoodService) GenerateMoodImages(ctx context.Context, req MoodImagesRequest) ([]domain.MoodMedia, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: a creative prompt is required", domain.ErrImageGeneration)
	}
	if len(req.SourceImages) == 0 {
		return nil, fmt.Errorf("%w: at least one source image is required", domain.ErrSourceLoad)
	}
	if len(req.SourceImages) > domain.MaxMoodSourceImages {
		return nil, fmt.Errorf("%w: at most %d source images per mood run", domain.ErrSourceLoad, domain.MaxMoodSourceImages)
	}

	ratios, err := normalizeMoodRatios(req.AspectRatios)
	if err != nil {
		return nil, err
	}

	cache := newSourceCache(s.loader)
	sources := make([]genai.InlineImage, 0, len(req.SourceImages))
	var totalBytes int
	for _, ref := range req.SourceImages {
		src, err := cache.Load(ctx, ref)
		if err != nil {
			return nil, err
		}
		sources = append(sources, genai.InlineImage{MIME: src.MIME, Data: src.Data})
		totalBytes += src.Size()
	}
	if totalBytes > domain.MaxSourcePayloadBytes {
		return nil, fmt.Errorf("%w: %.1fMB exceeds the %dMB cap",
			domain.ErrPayloadTooLarge,
			float64(totalBytes)/(1024*1024),
			domain.MaxSourcePayloadBytes/(1024*1024))
	}

	runID := uuid.NewString()
	instruction := moodInstruction(req.Prompt)
	media := make([]domain.MoodMedia, 0, len(ratios))

	for _, ratio := range ratios {
		data, _, err := s.images.EditImage(ctx, genai.ImageEditRequest{
			Instruction: instruction,
			Images:      sources,
			AspectRatio: ratio,
			RequestID:   runID,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrImageGeneration, ratio, err)
		}

		createdAt := s.now()
		key, err := s.store.Write(ctx, moodFileName(req.CampaignName, "img", createdAt, ratio, "png"), data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}

		s.logger.Info().
			Str("run_id", runID).
			Str("aspect_ratio", ratio).
			Str("path", key).
			Msg("mood: image persisted")

		media = append(media, domain.MoodMedia{
			ID:           uuid.NewString(),
			CampaignName: req.CampaignName,
			FilePath:     key,
			MediaType:    "image",
			Prompt:       req.Prompt,
			SourceImages: req.SourceImages,
			AspectRatio:  ratio,
			Model:        s.imageModel,
			CreatedAt:    createdAt,
		})
	}
	return media, nil
}

// GenerateMoodVideo produces one clip, blocking until the long-running video
// operation completes or the poll timeout fires.
func (s *MoodService) GenerateMoodVideo(ctx context.Context, req MoodVideoRequest) (*domain.MoodMedia, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: a creative prompt is required", domain.ErrImageGeneration)
	}
	if !slices.Contains(domain.VideoAspectRatios(), req.AspectRatio) {
		return nil, fmt.Errorf("%w: %q (video supports %s)",
			domain.ErrInvalidAspectRatio, req.AspectRatio, strings.Join(domain.VideoAspectRatios(), ", "))
	}
	if !slices.Contains(domain.VideoDurations(), req.DurationSeconds) {
		return nil, fmt.Errorf("video duration must be one of %v seconds, got %d", domain.VideoDurations(), req.DurationSeconds)
	}

	var reference *genai.InlineImage
	var sourceRefs []string
	if req.ReferenceImage != "" {
		src, err := s.loader.Load(ctx, req.ReferenceImage)
		if err != nil {
			return nil, err
		}
		if src.Size() > domain.MaxSourcePayloadBytes {
			return nil, fmt.Errorf("%w: reference image exceeds the %dMB cap",
				domain.ErrPayloadTooLarge, domain.MaxSourcePayloadBytes/(1024*1024))
		}
		reference = &genai.InlineImage{MIME: src.MIME, Data: src.Data}
		sourceRefs = []string{req.ReferenceImage}
	}

	runID := uuid.NewString()
	data, _, err := s.videos.GenerateVideo(ctx, genai.VideoRequest{
		Instruction:     moodVideoInstruction(req.Prompt, req.AspectRatio, req.DurationSeconds),
		Reference:       reference,
		AspectRatio:     req.AspectRatio,
		DurationSeconds: req.DurationSeconds,
		RequestID:       runID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageGeneration, err)
	}

	createdAt := s.now()
	key, err := s.store.Write(ctx, moodFileName(req.CampaignName, "vid", createdAt, req.AspectRatio, "mp4"), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	s.logger.Info().
		Str("run_id", runID).
		Str("aspect_ratio", req.AspectRatio).
		Int("duration_seconds", req.DurationSeconds).
		Str("path", key).
		Msg("mood: video persisted")

	return &domain.MoodMedia{
		ID:           uuid.NewString(),
		CampaignName: req.CampaignName,
		FilePath:     key,
		MediaType:    "video",
		Prompt:       req.Prompt,
		SourceImages: sourceRefs,
		AspectRatio:  req.AspectRatio,
		Duration:     req.DurationSeconds,
		Model:        s.videoModel,
		CreatedAt:    createdAt,
	}, nil
}

func normalizeMoodRatios(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return []string{"1:1"}, nil
	}
	allowed := domain.MoodAspectRatios()
	seen := make(map[string]struct{}, len(requested))
	var ratios []string
	for _, ratio := range requested {
		ratio = strings.TrimSpace(ratio)
		if !slices.Contains(allowed, ratio) {
			return nil, fmt.Errorf("%w: %q (mood images support %s)",
				domain.ErrInvalidAspectRatio, ratio, strings.Join(allowed, ", "))
		}
		if _, ok := seen[ratio]; ok {
			continue
		}
		seen[ratio] = struct{}{}
		ratios = append(ratios, ratio)
	}
	if len(ratios) > domain.MaxAspectRatios {
		return nil, fmt.Errorf("%w: at most %d aspect ratios per run", domain.ErrInvalidAspectRatio, domain.MaxAspectRatios)
	}
	return ratios, nil
}
