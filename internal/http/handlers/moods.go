package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"server/internal/pipeline"
)

type moodImagesRequest struct {
	CampaignName string   `json:"campaign_name"`
	Prompt       string   `json:"prompt"`
	SourceImages []string `json:"source_images"`
	AspectRatios []string `json:"aspect_ratios,omitempty"`
}

type moodVideoRequest struct {
	CampaignName    string `json:"campaign_name"`
	Prompt          string `json:"prompt"`
	ReferenceImage  string `json:"reference_image,omitempty"`
	AspectRatio     string `json:"aspect_ratio"`
	DurationSeconds int    `json:"duration_seconds"`
}

// GenerateMoodImages produces mood-board stills for a campaign.
func (a *App) GenerateMoodImages(w http.ResponseWriter, r *http.Request) {
	var req moodImagesRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CampaignName) == "" {
		a.error(w, http.StatusBadRequest, "campaign_name is required")
		return
	}

	media, err := a.Moods.GenerateMoodImages(r.Context(), pipeline.MoodImagesRequest{
		CampaignName: req.CampaignName,
		Prompt:       req.Prompt,
		SourceImages: req.SourceImages,
		AspectRatios: req.AspectRatios,
	})
	if err != nil {
		a.fail(w, err)
		return
	}

	if a.MoodRepo != nil {
		for _, m := range media {
			if err := a.MoodRepo.Save(r.Context(), m); err != nil {
				a.Logger.Error().Err(err).Str("media_id", m.ID).Msg("handlers: saving mood media failed")
			}
		}
	}

	a.json(w, http.StatusOK, map[string]any{"media": media})
}

// GenerateMoodVideo produces one mood-board clip. The request blocks until
// the remote video operation finishes.
func (a *App) GenerateMoodVideo(w http.ResponseWriter, r *http.Request) {
	var req moodVideoRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CampaignName) == "" {
		a.error(w, http.StatusBadRequest, "campaign_name is required")
		return
	}

	media, err := a.Moods.GenerateMoodVideo(r.Context(), pipeline.MoodVideoRequest{
		CampaignName:    req.CampaignName,
		Prompt:          req.Prompt,
		ReferenceImage:  req.ReferenceImage,
		AspectRatio:     req.AspectRatio,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		a.fail(w, err)
		return
	}

	if a.MoodRepo != nil {
		if err := a.MoodRepo.Save(r.Context(), *media); err != nil {
			a.Logger.Error().Err(err).Str("media_id", media.ID).Msg("handlers: saving mood media failed")
		}
	}

	a.json(w, http.StatusOK, media)
}

// ListMoodMedia returns a campaign's stored mood media, newest first.
func (a *App) ListMoodMedia(w http.ResponseWriter, r *http.Request) {
	if a.MoodRepo == nil {
		a.error(w, http.StatusNotImplemented, "mood media listing requires a database")
		return
	}
	campaign := strings.TrimSpace(r.URL.Query().Get("campaign_name"))
	if campaign == "" {
		a.error(w, http.StatusBadRequest, "campaign_name is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	media, err := a.MoodRepo.ListByCampaign(r.Context(), campaign, limit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]any{"media": media})
}
