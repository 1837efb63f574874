package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ensayo-paes/practice-service/internal/models"
	"github.com/ensayo-paes/practice-service/internal/repositories"
)

// RepositoryConfig holds the connections the repositories share.
type RepositoryConfig struct {
	DB          *gorm.DB
	RedisClient *redis.Client
}

type postgresRepository struct {
	db          *gorm.DB
	question    repositories.QuestionRepository
	readingText repositories.ReadingTextRepository
}

// NewRepository wires the Postgres-backed repositories. RedisClient may be
// nil; caching then degrades to direct reads.
func NewRepository(cfg RepositoryConfig) repositories.Repository {
	return &postgresRepository{
		db:          cfg.DB,
		question:    NewQuestionPostgreSQL(cfg.DB, cfg.RedisClient),
		readingText: NewReadingTextPostgreSQL(cfg.DB, cfg.RedisClient),
	}
}

// Migrate creates or updates the schema for the owned tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Question{},
		&models.ReadingText{},
		&models.User{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (r *postgresRepository) Question() repositories.QuestionRepository {
	return r.question
}

func (r *postgresRepository) ReadingText() repositories.ReadingTextRepository {
	return r.readingText
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *postgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.Close()
}
