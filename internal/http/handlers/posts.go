package handlers

import (
	"math/rand"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"server/internal/domain"
)

type generatePostRequest struct {
	CampaignName       string   `json:"campaign_name"`
	CampaignMessage    string   `json:"campaign_message"`
	CallToAction       string   `json:"call_to_action"`
	TargetRegion       string   `json:"target_region"`
	TargetAudience     string   `json:"target_audience"`
	ProductName        string   `json:"product_name"`
	ProductDescription string   `json:"product_description"`
	Prompt             string   `json:"prompt"`
	SourceImages       []string `json:"source_images"`
	BrandImage         string   `json:"brand_image,omitempty"`
	AspectRatios       []string `json:"aspect_ratios"`
}

// GeneratePost runs the full post pipeline for one campaign brief.
func (a *App) GeneratePost(w http.ResponseWriter, r *http.Request) {
	var req generatePostRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CampaignName) == "" {
		a.error(w, http.StatusBadRequest, "campaign_name is required")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "prompt is required")
		return
	}

	brand := req.BrandImage
	if brand == "" {
		brand = a.randomBrandMark()
	}

	record, err := a.Posts.Generate(r.Context(), domain.GenerationContext{
		CampaignName:       req.CampaignName,
		CampaignMessage:    req.CampaignMessage,
		CallToAction:       req.CallToAction,
		TargetRegion:       req.TargetRegion,
		TargetAudience:     req.TargetAudience,
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		Prompt:             req.Prompt,
		SourceImages:       req.SourceImages,
		BrandImage:         brand,
		AspectRatios:       req.AspectRatios,
	})
	if err != nil {
		a.fail(w, err)
		return
	}

	if a.PostRepo != nil {
		if err := a.PostRepo.Save(r.Context(), *record); err != nil {
			// The assets are already on disk; a metadata write failure
			// should not void the run.
			a.Logger.Error().Err(err).Str("record_id", record.ID).Msg("handlers: saving post record failed")
		}
	}

	a.json(w, http.StatusOK, record)
}

// randomBrandMark picks a random raster from BrandDir and returns it as a
// media-root-relative reference, or "" when none is available. Selection
// failures are cosmetic and only logged.
func (a *App) randomBrandMark() string {
	if a.BrandDir == "" {
		return ""
	}
	entries, err := os.ReadDir(filepath.Join(a.MediaRoot, filepath.FromSlash(a.BrandDir)))
	if err != nil {
		a.Logger.Warn().Err(err).Str("dir", a.BrandDir).Msg("handlers: brand mark directory unreadable")
		return ""
	}
	var marks []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg", ".webp":
			marks = append(marks, entry.Name())
		}
	}
	if len(marks) == 0 {
		return ""
	}
	return path.Join(a.BrandDir, marks[rand.Intn(len(marks))])
}
