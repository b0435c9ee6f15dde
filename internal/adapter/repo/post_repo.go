package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// PostRepositoryPG persists generation records using PostgreSQL.
type PostRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPostRepository constructs a new post repository instance.
func NewPostRepository(pool *pgxpool.Pool) *PostRepositoryPG {
	return &PostRepositoryPG{pool: pool}
}

// Save persists one generation record. Image paths are stored per ratio;
// ratios that failed stay NULL via the empty-path convention.
func (r *PostRepositoryPG) Save(ctx context.Context, record domain.GenerationRecord) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO posts (id, headline, body_text, caption, accent_color, generation_prompt, image_1_1, image_16_9, image_9_16, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10);
`,
		record.ID,
		record.Text.Headline,
		record.Text.BodyText,
		record.Text.Caption,
		record.Text.AccentColor,
		record.Prompt,
		record.ImagePathFor("1:1"),
		record.ImagePathFor("16:9"),
		record.ImagePathFor("9:16"),
		record.CreatedAt,
	)
	return err
}

// ListRecent returns the most recent generation records, newest first.
func (r *PostRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.GenerationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, headline, body_text, caption, accent_color, generation_prompt,
       COALESCE(image_1_1, ''), COALESCE(image_16_9, ''), COALESCE(image_9_16, ''),
       created_at
FROM posts
ORDER BY created_at DESC
LIMIT $1;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.GenerationRecord
	for rows.Next() {
		var rec domain.GenerationRecord
		var square, wide, tall string
		if err := rows.Scan(
			&rec.ID,
			&rec.Text.Headline,
			&rec.Text.BodyText,
			&rec.Text.Caption,
			&rec.Text.AccentColor,
			&rec.Prompt,
			&square, &wide, &tall,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Results = resultsFromColumns(square, wide, tall)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func resultsFromColumns(square, wide, tall string) []domain.CompositeResult {
	var results []domain.CompositeResult
	for _, entry := range []struct {
		ratio string
		path  string
	}{
		{"1:1", square},
		{"16:9", wide},
		{"9:16", tall},
	} {
		if entry.path == "" {
			continue
		}
		results = append(results, domain.CompositeResult{
			AspectRatio: entry.ratio,
			ImagePath:   entry.path,
			Success:     true,
		})
	}
	return results
}
