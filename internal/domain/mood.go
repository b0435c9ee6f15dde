package domain

import "time"

// Mood media constraints, matching what the video service accepts.
const (
	MaxMoodSourceImages = 3
	MaxVideoReferences  = 1
)

// MoodAspectRatios lists the ratios accepted for mood images. Video is
// restricted to VideoAspectRatios.
func MoodAspectRatios() []string {
	return []string{"1:1", "16:9", "9:16", "4:5", "3:2"}
}

// VideoAspectRatios lists the ratios the video service supports.
func VideoAspectRatios() []string {
	return []string{"16:9", "9:16"}
}

// VideoDurations lists the supported mood video durations in seconds.
func VideoDurations() []int {
	return []int{4, 6, 8}
}

// MoodMedia describes one generated mood-board asset.
type MoodMedia struct {
	ID           string    `json:"id"`
	CampaignName string    `json:"campaign_name"`
	FilePath     string    `json:"file_path"`
	MediaType    string    `json:"media_type"`
	Prompt       string    `json:"prompt"`
	SourceImages []string  `json:"source_images,omitempty"`
	AspectRatio  string    `json:"aspect_ratio"`
	Duration     int       `json:"duration,omitempty"`
	Model        string    `json:"model,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
