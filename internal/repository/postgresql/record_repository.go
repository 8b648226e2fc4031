package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bird-analysis-service/internal/entity"
)

var ErrNotFound = errors.New("not found")

// RecordRepository persists finished analyses and published posts.
type RecordRepository struct {
	pool *pgxpool.Pool
}

func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

func (r *RecordRepository) SaveAnalysis(ctx context.Context, a entity.Analysis) error {
	const q = `
INSERT INTO analyses (id, user_id, video_id, mp4_path, result_json, conf_used, stride_used)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, q, id, a.UserID, a.VideoID, a.MP4Path, a.ResultJSON, a.ConfUsed, a.StrideUsed)
	return err
}

// GetAnalysis returns one analysis scoped to its owner; ErrNotFound
// covers both a missing id and someone else's record.
func (r *RecordRepository) GetAnalysis(ctx context.Context, id, userID string) (entity.Analysis, error) {
	const q = `
SELECT id, user_id, video_id, mp4_path, result_json, conf_used, stride_used, created_at
FROM analyses
WHERE id = $1 AND user_id = $2;
`
	var a entity.Analysis
	if err := r.pool.QueryRow(ctx, q, id, userID).Scan(
		&a.ID, &a.UserID, &a.VideoID, &a.MP4Path, &a.ResultJSON, &a.ConfUsed, &a.StrideUsed, &a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.Analysis{}, ErrNotFound
		}
		return entity.Analysis{}, err
	}
	return a, nil
}

func (r *RecordRepository) ListAnalyses(ctx context.Context, userID string, limit int) ([]entity.Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, user_id, video_id, mp4_path, result_json, conf_used, stride_used, created_at
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Analysis
	for rows.Next() {
		var (
			a         entity.Analysis
			createdAt time.Time
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.VideoID, &a.MP4Path, &a.ResultJSON, &a.ConfUsed, &a.StrideUsed, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = createdAt
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *RecordRepository) CreatePost(ctx context.Context, p entity.Post) (string, error) {
	const q = `
INSERT INTO posts (id, user_id, video_id, mp4_path, title, description)
VALUES ($1, $2, $3, $4, $5, $6);
`
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := r.pool.Exec(ctx, q, id, p.UserID, p.VideoID, p.MP4Path, p.Title, p.Description); err != nil {
		return "", err
	}
	return id, nil
}

func (r *RecordRepository) ListPosts(ctx context.Context, limit int) ([]entity.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, user_id, video_id, mp4_path, title, description, created_at
FROM posts
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Post
	for rows.Next() {
		var p entity.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.VideoID, &p.MP4Path, &p.Title, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
