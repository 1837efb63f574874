package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ensayo-paes/practice-service/internal/clock"
	"github.com/ensayo-paes/practice-service/internal/events"
	"github.com/ensayo-paes/practice-service/internal/models"
	"github.com/ensayo-paes/practice-service/internal/repositories"
	"github.com/ensayo-paes/practice-service/internal/selector"
	"github.com/ensayo-paes/practice-service/internal/session"
	"github.com/ensayo-paes/practice-service/internal/store"
	"github.com/ensayo-paes/practice-service/internal/validator"
)

// liveSession is one student's in-memory orchestrator plus bookkeeping
// for idle eviction.
type liveSession struct {
	orch        *session.Orchestrator
	sessionID   string
	studentID   string
	lastTouched time.Time
}

type practiceService struct {
	repo      repositories.Repository
	snapshots store.SnapshotStore
	publisher events.EventPublisher
	clk       clock.Clock
	logger    *slog.Logger
	validator *validator.Validator

	// rng drives question selection; injected so tests can fix the seed.
	rng *rand.Rand

	mu        sync.Mutex
	byID      map[string]*liveSession
	byStudent map[string]*liveSession
}

func NewPracticeService(
	repo repositories.Repository,
	snapshots store.SnapshotStore,
	publisher events.EventPublisher,
	clk clock.Clock,
	rng *rand.Rand,
	logger *slog.Logger,
	v *validator.Validator,
) PracticeService {
	return &practiceService{
		repo:      repo,
		snapshots: snapshots,
		publisher: publisher,
		clk:       clk,
		rng:       rng,
		logger:    logger,
		validator: v,
		byID:      make(map[string]*liveSession),
		byStudent: make(map[string]*liveSession),
	}
}

// ===== SESSION LIFECYCLE =====

func (s *practiceService) Start(ctx context.Context, req *StartSessionRequest, studentID string) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	cfg := models.SessionConfig{
		Subject:            models.Subject(req.Subject),
		Mode:               models.SessionMode(req.Mode),
		QuestionCount:      req.QuestionCount,
		SecondsPerQuestion: req.SecondsPerQuestion,
		ReadingSeconds:     req.ReadingSeconds,
	}
	if err := s.validator.ValidateSessionConfig(cfg); err != nil {
		return nil, err
	}

	// The slot is claimed before any I/O so a concurrent Start or Resume
	// for the same student cannot also create a session.
	reserved, err := s.reserve(ctx, studentID)
	if err != nil {
		return nil, err
	}

	pool, err := s.repo.Question().FetchPool(ctx, cfg.Subject)
	if err != nil {
		s.releaseReservation(reserved)
		return nil, fmt.Errorf("failed to fetch question pool: %w", err)
	}
	if len(pool) == 0 {
		s.releaseReservation(reserved)
		return nil, ErrSubjectEmpty
	}

	s.mu.Lock()
	orderedIDs, err := selector.Select(pool, cfg.QuestionCount, s.rng)
	s.mu.Unlock()
	if err != nil {
		s.releaseReservation(reserved)
		if errors.Is(err, selector.ErrNoQuestionsAvailable) {
			return nil, ErrSubjectEmpty
		}
		return nil, fmt.Errorf("question selection failed: %w", err)
	}

	questions := pickQuestions(pool, orderedIDs)
	sessionID := uuid.New().String()

	orch, err := session.New(cfg, sessionID, studentID, orderedIDs, questions, s.clk, s.snapshots, s.publisher, s.logger)
	if err != nil {
		s.releaseReservation(reserved)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.completeReservation(reserved, orch, sessionID)

	s.logger.Info("Practice session started",
		"session_id", sessionID,
		"student_id", studentID,
		"subject", cfg.Subject,
		"mode", cfg.Mode,
		"question_count", len(orderedIDs))

	return s.buildResponse(ctx, reserved), nil
}

// Resume returns the student's live session if one is still in memory, or
// rebuilds it from the snapshot slot.
func (s *practiceService) Resume(ctx context.Context, studentID string) (*SessionResponse, error) {
	s.mu.Lock()
	if live, ok := s.byStudent[studentID]; ok {
		if live.orch == nil {
			// Another request holds the slot while it builds the session.
			s.mu.Unlock()
			return nil, ErrSessionInProgress
		}
		live.lastTouched = s.clk.Now()
		s.mu.Unlock()
		return s.buildResponse(ctx, live), nil
	}
	s.mu.Unlock()

	reserved, err := s.reserve(ctx, studentID)
	if err != nil {
		return nil, err
	}

	snap, err := s.snapshots.Load(ctx, studentID)
	if err != nil {
		s.releaseReservation(reserved)
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}
	if snap == nil {
		s.releaseReservation(reserved)
		return nil, ErrSnapshotNotFound
	}

	questions, err := s.repo.Question().GetByIDs(ctx, snap.OrderedQuestionIDs)
	if err != nil {
		s.releaseReservation(reserved)
		return nil, fmt.Errorf("failed to load snapshot questions: %w", err)
	}
	if len(questions) != len(snap.OrderedQuestionIDs) {
		// The question bank moved underneath the snapshot. It cannot be
		// resumed faithfully, so discard it.
		_ = s.snapshots.Clear(ctx, studentID)
		s.releaseReservation(reserved)
		return nil, ErrQuestionsMissing
	}

	orch, err := session.Restore(snap, questions, s.clk, s.snapshots, s.publisher, s.logger)
	if err != nil {
		s.releaseReservation(reserved)
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	s.completeReservation(reserved, orch, snap.SessionID)

	s.logger.Info("Practice session resumed",
		"session_id", snap.SessionID,
		"student_id", studentID,
		"index", snap.CurrentIndex,
		"seconds_remaining", snap.SecondsRemainingInPhase)

	return s.buildResponse(ctx, reserved), nil
}

func (s *practiceService) DiscardSnapshot(ctx context.Context, studentID string) error {
	if err := s.snapshots.Clear(ctx, studentID); err != nil {
		return fmt.Errorf("failed to discard snapshot: %w", err)
	}
	return nil
}

func (s *practiceService) Get(ctx context.Context, sessionID, studentID string) (*SessionResponse, error) {
	live, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, live), nil
}

// ===== IN-SESSION OPERATIONS =====

func (s *practiceService) SelectAnswer(ctx context.Context, sessionID, studentID string, req *SelectAnswerRequest) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	live, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if err := live.orch.SelectAnswer(req.Answer); err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, live), nil
}

func (s *practiceService) SubmitAnswer(ctx context.Context, sessionID, studentID string, req *SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	live, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}

	result, err := live.orch.SubmitAnswer(req.Answer)
	if err != nil {
		return nil, err
	}

	return &SubmitAnswerResponse{
		IsCorrect:     result.IsCorrect,
		CorrectAnswer: result.CorrectAnswer,
		Explanation:   result.Explanation,
	}, nil
}

func (s *practiceService) Advance(ctx context.Context, sessionID, studentID string) (*SessionResponse, error) {
	live, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if err := live.orch.Advance(); err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, live), nil
}

func (s *practiceService) Ready(ctx context.Context, sessionID, studentID string) (*SessionResponse, error) {
	live, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if err := live.orch.Ready(); err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, live), nil
}

// Exit tears down the live session. Unfinished sessions are snapshotted
// by the orchestrator and reported as abandoned.
func (s *practiceService) Exit(ctx context.Context, sessionID, studentID string) error {
	live, err := s.lookup(sessionID, studentID)
	if err != nil {
		return err
	}

	snap, err := live.orch.Exit(ctx)
	if err != nil {
		return err
	}

	s.unregister(live)

	if snap != nil && s.publisher != nil {
		if pubErr := s.publisher.Publish(events.EventSessionAbandoned, map[string]interface{}{
			"session_id": sessionID,
			"student_id": studentID,
			"index":      snap.CurrentIndex,
		}); pubErr != nil {
			s.logger.Error("Failed to publish abandon event",
				"session_id", sessionID,
				"error", pubErr)
		}
	}

	s.logger.Info("Practice session exited",
		"session_id", sessionID,
		"student_id", studentID,
		"snapshotted", snap != nil)

	return nil
}

// ===== POST-SESSION OPERATIONS =====

func (s *practiceService) Result(ctx context.Context, sessionID, studentID string) (*ResultResponse, error) {
	live, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}

	result, ok := live.orch.Result()
	if !ok {
		return nil, ErrSessionNotDone
	}

	return &ResultResponse{
		SessionResult: *result,
		Attempts:      live.orch.Attempts(),
	}, nil
}

// Retry starts a review session over the questions the student got wrong
// (or left unanswered) in a finished session, preserving their order.
func (s *practiceService) Retry(ctx context.Context, sessionID, studentID string) (*SessionResponse, error) {
	live, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}

	if _, ok := live.orch.Result(); !ok {
		return nil, ErrSessionNotDone
	}

	sess := live.orch.Session()
	correct := make(map[string]bool)
	for _, attempt := range live.orch.Attempts() {
		if attempt.IsCorrect {
			correct[attempt.QuestionID] = true
		}
	}

	var retryIDs []string
	for _, id := range sess.OrderedQuestionIDs {
		if !correct[id] {
			retryIDs = append(retryIDs, id)
		}
	}
	if len(retryIDs) == 0 {
		return nil, ErrNoRetryableErrors
	}

	questions, err := s.repo.Question().GetByIDs(ctx, retryIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load retry questions: %w", err)
	}
	if len(questions) != len(retryIDs) {
		return nil, ErrQuestionsMissing
	}

	cfg := models.SessionConfig{
		Subject: sess.Config.Subject,
		Mode:    models.ModeReview,
	}
	newID := uuid.New().String()

	orch, err := session.New(cfg, newID, studentID, retryIDs, questions, s.clk, s.snapshots, s.publisher, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry session: %w", err)
	}

	newLive := &liveSession{
		orch:        orch,
		sessionID:   newID,
		studentID:   studentID,
		lastTouched: s.clk.Now(),
	}

	s.mu.Lock()
	if s.byID[sessionID] != live {
		// The finished session was evicted or retried concurrently.
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	delete(s.byID, sessionID)
	s.byStudent[studentID] = newLive
	s.byID[newID] = newLive
	s.mu.Unlock()

	s.logger.Info("Retry session started",
		"session_id", newID,
		"student_id", studentID,
		"source_session_id", sessionID,
		"question_count", len(retryIDs))

	return s.buildResponse(ctx, newLive), nil
}

// Shutdown snapshots every live unfinished session so students can resume
// after a restart.
func (s *practiceService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*liveSession, 0, len(s.byID))
	for _, live := range s.byID {
		sessions = append(sessions, live)
	}
	s.byID = make(map[string]*liveSession)
	s.byStudent = make(map[string]*liveSession)
	s.mu.Unlock()

	for _, live := range sessions {
		if _, err := live.orch.Exit(ctx); err != nil {
			s.logger.Error("Failed to snapshot session on shutdown",
				"session_id", live.sessionID,
				"error", err)
		}
	}

	s.logger.Info("Practice service shut down", "sessions_persisted", len(sessions))
	return nil
}

// ===== INTERNAL HELPERS =====

// reserve atomically claims the student's slot in byStudent. The returned
// liveSession has no orchestrator yet; the caller must either fill it with
// completeReservation or give it back with releaseReservation. Holding the
// slot across the question-bank I/O keeps one-session-per-student exact
// under concurrent Start and Resume calls.
func (s *practiceService) reserve(ctx context.Context, studentID string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIdleLocked(ctx)
	if _, exists := s.byStudent[studentID]; exists {
		return nil, ErrSessionInProgress
	}

	live := &liveSession{
		studentID:   studentID,
		lastTouched: s.clk.Now(),
	}
	s.byStudent[studentID] = live
	return live, nil
}

func (s *practiceService) completeReservation(live *liveSession, orch *session.Orchestrator, sessionID string) {
	s.mu.Lock()
	live.orch = orch
	live.sessionID = sessionID
	live.lastTouched = s.clk.Now()
	s.byID[sessionID] = live
	s.mu.Unlock()
}

func (s *practiceService) releaseReservation(live *liveSession) {
	s.mu.Lock()
	if s.byStudent[live.studentID] == live {
		delete(s.byStudent, live.studentID)
	}
	s.mu.Unlock()
}

func (s *practiceService) unregister(live *liveSession) {
	s.mu.Lock()
	delete(s.byID, live.sessionID)
	if s.byStudent[live.studentID] == live {
		delete(s.byStudent, live.studentID)
	}
	s.mu.Unlock()
}

func (s *practiceService) lookup(sessionID, studentID string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.byID[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if live.studentID != studentID {
		return nil, ErrUnauthorized
	}
	live.lastTouched = s.clk.Now()
	return live, nil
}

// evictIdleLocked exits sessions nobody has touched for the idle window.
// The orchestrator snapshots them, so nothing is lost.
func (s *practiceService) evictIdleLocked(ctx context.Context) {
	cutoff := s.clk.Now().Add(-sessionTouchWindow)
	for id, live := range s.byID {
		if live.lastTouched.After(cutoff) {
			continue
		}
		if _, err := live.orch.Exit(ctx); err != nil {
			s.logger.Error("Failed to evict idle session",
				"session_id", id,
				"error", err)
		}
		delete(s.byID, id)
		if s.byStudent[live.studentID] == live {
			delete(s.byStudent, live.studentID)
		}
	}
}

func (s *practiceService) buildResponse(ctx context.Context, live *liveSession) *SessionResponse {
	sess := live.orch.Session()

	resp := &SessionResponse{
		SessionID:        sess.SessionID,
		Subject:          sess.Config.Subject,
		Mode:             sess.Config.Mode,
		Phase:            sess.Phase,
		CurrentIndex:     sess.CurrentIndex,
		TotalQuestions:   len(sess.OrderedQuestionIDs),
		SecondsRemaining: sess.SecondsRemainingInPhase,
		Finished:         sess.Finished,
		SelectedAnswer:   live.orch.StagedAnswer(),
	}
	if sess.Finished {
		return resp
	}

	q := live.orch.CurrentQuestion()
	resp.Question = &QuestionView{
		ID:             q.ID,
		Subject:        q.Subject,
		Content:        q.Content,
		Options:        q.Options.Data(),
		QuestionNumber: q.QuestionNumber,
		ReadingTextID:  q.ReadingTextID,
	}

	if q.ReadingTextID != nil && *q.ReadingTextID != "" {
		texts, err := s.repo.ReadingText().GetByIDs(ctx, []string{*q.ReadingTextID})
		if err != nil {
			s.logger.Warn("Failed to load reading text",
				"session_id", sess.SessionID,
				"reading_text_id", *q.ReadingTextID,
				"error", err)
		} else if len(texts) > 0 {
			resp.ReadingText = &ReadingTextView{
				ID:       texts[0].ID,
				Title:    texts[0].Title,
				Document: texts[0].Document,
			}
		}
	}

	return resp
}

func pickQuestions(pool []models.Question, ids []string) []models.Question {
	byID := make(map[string]models.Question, len(pool))
	for _, q := range pool {
		byID[q.ID] = q
	}
	out := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}
