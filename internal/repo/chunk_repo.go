package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/duty-roster-bot/internal/domain"
)

// CreateChunk inserts one training chunk with a fresh UUID. Each call is its
// own statement, so a multi-chunk ingest that fails midway keeps the chunks
// already written.
func CreateChunk(ctx context.Context, db *gorm.DB, source, uploadedBy, content string, embedding []float32) (*domain.TrainingChunk, error) {
	c := &domain.TrainingChunk{
		ID:         uuid.NewString(),
		Source:     source,
		UploadedBy: uploadedBy,
		Content:    content,
		Embedding:  embedding,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListChunks returns every stored chunk, oldest first. The knowledge base is
// small (a handful of uploaded documents), so ranking happens in memory.
func ListChunks(ctx context.Context, db *gorm.DB) ([]domain.TrainingChunk, error) {
	var out []domain.TrainingChunk
	err := db.WithContext(ctx).Order("created_at asc").Find(&out).Error
	return out, err
}

// ChunkStats returns the number of stored chunks and the newest CreatedAt,
// or nil when the table is empty.
func ChunkStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.TrainingChunk{})
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	// Fetch the row instead of MAX() so SQLite returns a typed timestamp.
	var row domain.TrainingChunk
	if err = db.WithContext(ctx).Order("created_at desc").Limit(1).Find(&row).Error; err != nil {
		return 0, nil, err
	}
	t := row.CreatedAt.UTC()
	return count, &t, nil
}
