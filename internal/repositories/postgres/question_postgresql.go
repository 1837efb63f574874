package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ensayo-paes/practice-service/internal/cache"
	"github.com/ensayo-paes/practice-service/internal/models"
	"github.com/ensayo-paes/practice-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db        *gorm.DB
	poolCache *cache.CacheHelper
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:        db,
		poolCache: cache.NewCacheHelper(redisClient, "question:"),
	}
}

// FetchPool returns every question for a subject. The pool is read once
// per session creation, so it is cached as a whole per subject.
func (q *QuestionPostgreSQL) FetchPool(ctx context.Context, subject models.Subject) ([]models.Question, error) {
	cacheKey := fmt.Sprintf("pool:%s", subject)
	var pool []models.Question

	err := q.poolCache.CacheOrExecute(ctx, cacheKey, &pool, cache.QuestionPoolTTL, func() (interface{}, error) {
		var questions []models.Question
		if err := q.db.WithContext(ctx).
			Where("subject = ?", subject).
			Order("reading_text_id, question_number").
			Find(&questions).Error; err != nil {
			return nil, fmt.Errorf("failed to fetch question pool: %w", err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}

	return pool, nil
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, ids []string) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var questions []models.Question
	if err := q.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&questions).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get questions by ids: %w", err)
	}

	return questions, nil
}

func (q *QuestionPostgreSQL) List(ctx context.Context, filters repositories.QuestionFilters) ([]models.Question, int64, error) {
	query := q.db.WithContext(ctx).Model(&models.Question{})

	if filters.Subject != nil {
		query = query.Where("subject = ?", *filters.Subject)
	}
	if filters.AreaTematica != nil {
		query = query.Where("area_tematica = ?", *filters.AreaTematica)
	}
	if filters.ReadingTextID != nil {
		query = query.Where("reading_text_id = ?", *filters.ReadingTextID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questions: %w", err)
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var questions []models.Question
	if err := query.Order("subject, reading_text_id, question_number").Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}

	return questions, total, nil
}

// CreateBatch inserts imported questions and invalidates the affected
// subject pools.
func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	if err := q.db.WithContext(ctx).Create(&questions).Error; err != nil {
		return fmt.Errorf("failed to create questions: %w", err)
	}

	subjects := make(map[models.Subject]struct{})
	for _, question := range questions {
		subjects[question.Subject] = struct{}{}
	}
	for subject := range subjects {
		_ = q.poolCache.Delete(ctx, fmt.Sprintf("pool:%s", subject))
	}

	return nil
}
