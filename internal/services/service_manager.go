package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/ensayo-paes/practice-service/internal/clock"
	"github.com/ensayo-paes/practice-service/internal/events"
	"github.com/ensayo-paes/practice-service/internal/repositories"
	"github.com/ensayo-paes/practice-service/internal/store"
	"github.com/ensayo-paes/practice-service/internal/validator"
)

// serviceManager wires the services to their shared dependencies.
type serviceManager struct {
	repo   repositories.Repository
	logger *slog.Logger

	practiceService PracticeService
	questionService QuestionService

	mu       sync.RWMutex
	shutdown bool
}

func NewServiceManager(
	repo repositories.Repository,
	snapshots store.SnapshotStore,
	publisher events.EventPublisher,
	clk clock.Clock,
	rng *rand.Rand,
	logger *slog.Logger,
	v *validator.Validator,
) ServiceManager {
	return &serviceManager{
		repo:            repo,
		logger:          logger,
		practiceService: NewPracticeService(repo, snapshots, publisher, clk, rng, logger, v),
		questionService: NewQuestionService(repo, logger, v),
	}
}

func (sm *serviceManager) Practice() PracticeService {
	return sm.practiceService
}

func (sm *serviceManager) Question() QuestionService {
	return sm.questionService
}

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}
	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if err := sm.practiceService.Shutdown(ctx); err != nil {
		sm.logger.Error("Failed to shut down practice service", "error", err)
	}

	sm.shutdown = true
	return nil
}
