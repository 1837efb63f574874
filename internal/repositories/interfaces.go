package repositories

import (
	"context"
	"errors"

	"github.com/ensayo-paes/practice-service/internal/models"
)

var ErrNotFound = errors.New("record not found")

// IsNotFoundError reports whether err is the repository not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// QuestionFilters narrows question listings for the admin endpoints.
type QuestionFilters struct {
	Subject       *models.Subject `json:"subject"`
	AreaTematica  *string         `json:"area_tematica"`
	ReadingTextID *string         `json:"reading_text_id"`
	Limit         int             `json:"limit"`
	Offset        int             `json:"offset"`
}

// QuestionRepository is the external question source. The session engine
// only reads from it, and only at session creation time.
type QuestionRepository interface {
	FetchPool(ctx context.Context, subject models.Subject) ([]models.Question, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Question, error)
	List(ctx context.Context, filters QuestionFilters) ([]models.Question, int64, error)
	CreateBatch(ctx context.Context, questions []models.Question) error
}

// ReadingTextRepository is the external reading-text source.
type ReadingTextRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.ReadingText, error)
	Create(ctx context.Context, text *models.ReadingText) error
}

// Repository aggregates the data-source ports the service depends on.
type Repository interface {
	Question() QuestionRepository
	ReadingText() ReadingTextRepository

	Ping(ctx context.Context) error
	Close() error
}
