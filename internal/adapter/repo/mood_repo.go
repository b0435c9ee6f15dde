package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// MoodRepositoryPG persists mood media metadata using PostgreSQL.
type MoodRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewMoodRepository constructs a new mood media repository instance.
func NewMoodRepository(pool *pgxpool.Pool) *MoodRepositoryPG {
	return &MoodRepositoryPG{pool: pool}
}

// Save persists one mood media row.
func (r *MoodRepositoryPG) Save(ctx context.Context, media domain.MoodMedia) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO mood_media (id, campaign_name, file_path, media_type, prompt, source_images, aspect_ratio, duration_seconds, model, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`,
		media.ID,
		media.CampaignName,
		media.FilePath,
		media.MediaType,
		media.Prompt,
		media.SourceImages,
		media.AspectRatio,
		media.Duration,
		media.Model,
		media.CreatedAt,
	)
	return err
}

// ListByCampaign returns a campaign's mood media, newest first.
func (r *MoodRepositoryPG) ListByCampaign(ctx context.Context, campaignName string, limit int) ([]domain.MoodMedia, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, campaign_name, file_path, media_type, prompt, COALESCE(source_images, '{}'), aspect_ratio, duration_seconds, COALESCE(model, ''), created_at
FROM mood_media
WHERE campaign_name = $1
ORDER BY created_at DESC
LIMIT $2;
`, campaignName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []domain.MoodMedia
	for rows.Next() {
		var m domain.MoodMedia
		if err := rows.Scan(&m.ID, &m.CampaignName, &m.FilePath, &m.MediaType, &m.Prompt, &m.SourceImages, &m.AspectRatio, &m.Duration, &m.Model, &m.CreatedAt); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return media, nil
}
