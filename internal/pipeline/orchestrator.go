package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/copywriter"
)

// TextGenerator produces the post copy for a run. Implemented by
// copywriter.Generator; faked in tests.
type TextGenerator interface {
	Generate(ctx context.Context, brief copywriter.Brief) (domain.TextContent, error)
}

// BlobStore persists encoded assets under a relative key and returns the
// canonicalized key. Implemented by storage.FileStore.
type BlobStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Orchestrator drives one generation run: copy once, base image once, then
// composite and persist per ratio, aggregating partial failures.
type Orchestrator struct {
	text       TextGenerator
	base       BaseGenerator
	loader     *Loader
	compositor *Compositor
	store      BlobStore
	logger     infra.Logger
	now        func() time.Time
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(text TextGenerator, base BaseGenerator, loader *Loader, compositor *Compositor, store BlobStore, logger *infra.Logger) *Orchestrator {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Orchestrator{
		text:       text,
		base:       base,
		loader:     loader,
		compositor: compositor,
		store:      store,
		logger:     *logger,
		now:        time.Now,
	}
}

// Generate runs the full pipeline for one GenerationContext. Text and
// base-image failures abort the run; per-ratio composite or persistence
// failures are recorded and processing continues. The returned record holds
// one CompositeResult per requested ratio, in caller order. An error is
// returned only when the run as a whole failed (including every ratio
// failing).
func (o *Orchestrator) Generate(ctx context.Context, gc domain.GenerationContext) (*domain.GenerationRecord, error) {
	ratios, err := gc.NormalizedRatios()
	if err != nil {
		return nil, err
	}
	if len(gc.SourceImages) == 0 {
		return nil, fmt.Errorf("%w: at least one source image is required", domain.ErrSourceLoad)
	}

	runID := uuid.NewString()
	logger := o.logger.With().Str("run_id", runID).Logger()

	cache := newSourceCache(o.loader)
	sources := make([]domain.SourceImage, 0, len(gc.SourceImages))
	var totalBytes int
	for _, ref := range gc.SourceImages {
		src, err := cache.Load(ctx, ref)
		if err != nil {
			logger.Error().Err(err).Str("reference", ref).Msg("pipeline: source image load failed")
			return nil, err
		}
		sources = append(sources, src)
		totalBytes += src.Size()
	}
	if totalBytes > domain.MaxSourcePayloadBytes {
		return nil, fmt.Errorf("%w: %.1fMB exceeds the %dMB cap",
			domain.ErrPayloadTooLarge,
			float64(totalBytes)/(1024*1024),
			domain.MaxSourcePayloadBytes/(1024*1024))
	}

	text, err := o.text.Generate(ctx, copywriter.Brief{
		CampaignMessage:    gc.CampaignMessage,
		CallToAction:       gc.CallToAction,
		TargetRegion:       gc.TargetRegion,
		TargetAudience:     gc.TargetAudience,
		ProductName:        gc.ProductName,
		ProductDescription: gc.ProductDescription,
		UserPrompt:         gc.Prompt,
	})
	if err != nil {
		logger.Error().Err(err).Msg("pipeline: text generation failed")
		return nil, err
	}

	// One stylization call per run; every ratio after the first derives
	// from this base by local resize-crop, which keeps the visuals
	// consistent and bounds external-call cost.
	base, err := o.base.GenerateBase(ctx, BaseRequest{
		CampaignMessage: gc.CampaignMessage,
		Headline:        text.Headline,
		UserPrompt:      gc.Prompt,
		AspectRatio:     ratios[0],
		Sources:         sources,
		RequestID:       runID,
	})
	if err != nil {
		logger.Error().Err(err).Str("aspect_ratio", ratios[0]).Msg("pipeline: base image generation failed")
		return nil, err
	}

	var brand image.Image
	if gc.BrandImage != "" {
		if src, err := cache.Load(ctx, gc.BrandImage); err != nil {
			logger.Warn().Err(err).Str("reference", gc.BrandImage).Msg("pipeline: brand mark unavailable, continuing without it")
		} else {
			brand = src.Image
		}
	}

	dir := postDirectory(gc.CampaignName, text.Headline)
	results := make([]domain.CompositeResult, 0, len(ratios))
	succeeded := 0
	var firstRatioErr error

	for i, ratio := range ratios {
		if err := ctx.Err(); err != nil {
			// Stop issuing new work; already-persisted ratios stay on
			// disk and the remaining ones are reported as failed.
			for _, rest := range ratios[i:] {
				results = append(results, domain.CompositeResult{
					AspectRatio: rest,
					Error:       "run cancelled before this ratio was processed",
				})
			}
			break
		}

		result := o.processRatio(ctx, logger, dir, ratio, base, text, brand)
		if result.Success {
			succeeded++
		} else if firstRatioErr == nil {
			firstRatioErr = fmt.Errorf("%s: %s", ratio, result.Error)
		}
		results = append(results, result)
	}

	if succeeded == 0 {
		if firstRatioErr == nil {
			firstRatioErr = ctx.Err()
		}
		return nil, fmt.Errorf("all %d requested aspect ratios failed: %v", len(ratios), firstRatioErr)
	}

	logger.Info().
		Int("requested", len(ratios)).
		Int("succeeded", succeeded).
		Msg("pipeline: generation run complete")

	return &domain.GenerationRecord{
		ID:        runID,
		Text:      text,
		Prompt:    gc.Prompt,
		Results:   results,
		CreatedAt: o.now(),
	}, nil
}

func (o *Orchestrator) processRatio(ctx context.Context, logger infra.Logger, dir, ratio string, base image.Image, text domain.TextContent, brand image.Image) domain.CompositeResult {
	spec, ok := domain.CanvasFor(ratio)
	if !ok {
		// NormalizedRatios already rejected unknown ratios; this guards
		// against table drift.
		return domain.CompositeResult{AspectRatio: ratio, Error: "no canvas spec for ratio"}
	}

	composed, err := o.compositor.ComposePost(base, spec, text, brand)
	if err != nil {
		logger.Error().Err(err).Str("aspect_ratio", ratio).Msg("pipeline: compositing failed")
		return domain.CompositeResult{AspectRatio: ratio, Error: err.Error()}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, composed); err != nil {
		logger.Error().Err(err).Str("aspect_ratio", ratio).Msg("pipeline: png encoding failed")
		return domain.CompositeResult{AspectRatio: ratio, Error: fmt.Sprintf("%v: %v", domain.ErrComposite, err)}
	}

	key, err := o.store.Write(ctx, dir+"/"+postFileName(ratio), buf.Bytes())
	if err != nil {
		logger.Error().Err(err).Str("aspect_ratio", ratio).Msg("pipeline: persistence failed")
		return domain.CompositeResult{AspectRatio: ratio, Error: fmt.Sprintf("%v: %v", domain.ErrPersistence, err)}
	}

	logger.Debug().Str("aspect_ratio", ratio).Str("path", key).Msg("pipeline: ratio complete")
	return domain.CompositeResult{AspectRatio: ratio, ImagePath: key, Success: true}
}
