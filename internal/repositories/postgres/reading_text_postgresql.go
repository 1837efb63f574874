package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ensayo-paes/practice-service/internal/cache"
	"github.com/ensayo-paes/practice-service/internal/models"
	"github.com/ensayo-paes/practice-service/internal/repositories"
)

type ReadingTextPostgreSQL struct {
	db        *gorm.DB
	textCache *cache.CacheHelper
}

func NewReadingTextPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ReadingTextRepository {
	return &ReadingTextPostgreSQL{
		db:        db,
		textCache: cache.NewCacheHelper(redisClient, "readingtext:"),
	}
}

func (r *ReadingTextPostgreSQL) GetByIDs(ctx context.Context, ids []string) ([]models.ReadingText, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("ids:%v", ids)
	var texts []models.ReadingText

	err := r.textCache.CacheOrExecute(ctx, cacheKey, &texts, cache.ReadingTextTTL, func() (interface{}, error) {
		var dbTexts []models.ReadingText
		if err := r.db.WithContext(ctx).
			Where("id IN ?", ids).
			Find(&dbTexts).Error; err != nil {
			return nil, fmt.Errorf("failed to get reading texts: %w", err)
		}
		return dbTexts, nil
	})
	if err != nil {
		return nil, err
	}

	return texts, nil
}

func (r *ReadingTextPostgreSQL) Create(ctx context.Context, text *models.ReadingText) error {
	if err := r.db.WithContext(ctx).Create(text).Error; err != nil {
		return fmt.Errorf("failed to create reading text: %w", err)
	}

	_ = r.textCache.InvalidatePattern(ctx, "ids:*")
	return nil
}
