// Package session drives a practice session through its phases: which
// question is current, whether the student is reading or answering, what
// the countdown is doing, and what happens when it runs out. All mutation
// of a PracticeSession goes through the Orchestrator's named operations.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ensayo-paes/practice-service/internal/clock"
	"github.com/ensayo-paes/practice-service/internal/events"
	"github.com/ensayo-paes/practice-service/internal/models"
	"github.com/ensayo-paes/practice-service/internal/scoring"
	"github.com/ensayo-paes/practice-service/internal/store"
	"github.com/ensayo-paes/practice-service/internal/timer"
)

var (
	ErrSessionFinished  = errors.New("session already finished")
	ErrNotAnswering     = errors.New("session is not in the answering phase")
	ErrNotReading       = errors.New("session is not in the reading phase")
	ErrAlreadyAnswered  = errors.New("question already answered")
	ErrInvalidOption    = errors.New("answer is not one of the question's options")
	ErrQuestionNotFound = errors.New("question referenced by session not found")
)

// SubmitResult is what the student sees right after submitting.
type SubmitResult struct {
	IsCorrect     bool    `json:"is_correct"`
	CorrectAnswer string  `json:"correct_answer"`
	Explanation   *string `json:"explanation,omitempty"`
}

// Orchestrator owns one PracticeSession from creation (or restoration)
// until it finishes or the student exits. At most one timer controller is
// running at any instant; in PAES mode the aggregate countdown is paused
// while a reading sub-timer runs.
type Orchestrator struct {
	mu sync.Mutex

	clk       clock.Clock
	logger    *slog.Logger
	snapshots store.SnapshotStore
	publisher events.EventPublisher

	sess      models.PracticeSession
	questions map[string]models.Question

	// staged holds a selected-but-not-submitted option for the current
	// question. It is what a timeout commits under the record-if-present
	// policy.
	staged string

	attempts            []models.Attempt
	secondsIntoQuestion int
	questionStartedAt   time.Time

	// phaseTimer is the reading or per-question countdown; aggregate is
	// the PAES whole-set countdown. They are never running together.
	phaseTimer *timer.Controller
	aggregate  *timer.Controller

	result *models.SessionResult
	exited bool
}

// New creates an orchestrator for a freshly selected question order. The
// selector has already run; orderedIDs is final.
func New(
	cfg models.SessionConfig,
	sessionID, studentID string,
	orderedIDs []string,
	questions []models.Question,
	clk clock.Clock,
	snapshots store.SnapshotStore,
	publisher events.EventPublisher,
	logger *slog.Logger,
) (*Orchestrator, error) {
	o := &Orchestrator{
		clk:       clk,
		logger:    logger,
		snapshots: snapshots,
		publisher: publisher,
		questions: indexQuestions(questions),
		sess: models.PracticeSession{
			SessionID:          sessionID,
			StudentID:          studentID,
			Config:             cfg,
			OrderedQuestionIDs: orderedIDs,
			Answers:            make(map[int]string),
			StartedAt:          clk.Now(),
		},
	}

	if err := o.checkQuestionCoverage(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.enterIndexLocked(0)
	return o, nil
}

// Restore rebuilds an orchestrator from a snapshot. The question order,
// position and answers come back exactly as saved; timers resume from the
// stored remaining seconds instead of restarting. The selector is never
// re-invoked here.
func Restore(
	snap *models.SessionSnapshot,
	questions []models.Question,
	clk clock.Clock,
	snapshots store.SnapshotStore,
	publisher events.EventPublisher,
	logger *slog.Logger,
) (*Orchestrator, error) {
	o := &Orchestrator{
		clk:       clk,
		logger:    logger,
		snapshots: snapshots,
		publisher: publisher,
		questions: indexQuestions(questions),
		sess: models.PracticeSession{
			SessionID:          snap.SessionID,
			StudentID:          snap.StudentID,
			Config:             snap.Config,
			OrderedQuestionIDs: snap.OrderedQuestionIDs,
			CurrentIndex:       snap.CurrentIndex,
			Phase:              snap.Phase,
			Answers:            snap.Answers,
			StartedAt:          snap.StartedAt,
		},
	}
	if o.sess.Answers == nil {
		o.sess.Answers = make(map[int]string)
	}

	if err := o.checkQuestionCoverage(); err != nil {
		return nil, err
	}
	if snap.CurrentIndex < 0 || snap.CurrentIndex >= len(snap.OrderedQuestionIDs) {
		return nil, fmt.Errorf("snapshot index %d out of range", snap.CurrentIndex)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.resumeTimersLocked(snap.SecondsRemainingInPhase)
	o.questionStartedAt = clk.Now()
	return o, nil
}

func indexQuestions(questions []models.Question) map[string]models.Question {
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID
}

func (o *Orchestrator) checkQuestionCoverage() error {
	if len(o.sess.OrderedQuestionIDs) == 0 {
		return fmt.Errorf("session has no questions")
	}
	for _, id := range o.sess.OrderedQuestionIDs {
		if _, ok := o.questions[id]; !ok {
			return fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
		}
	}
	return nil
}

// ===== PHASE TRANSITIONS =====

// enterIndexLocked positions the session at index i and decides whether a
// reading phase precedes it.
func (o *Orchestrator) enterIndexLocked(i int) {
	o.sess.CurrentIndex = i
	o.staged = ""
	o.secondsIntoQuestion = 0
	o.questionStartedAt = o.clk.Now()

	if o.needsReadingPhaseLocked(i) {
		o.enterReadingLocked()
		return
	}
	o.enterAnsweringLocked()
}

// needsReadingPhaseLocked: a reading phase opens whenever the question at
// i starts a new reading-text group (different text than i-1, or i == 0)
// and the mode uses reading phases at all.
func (o *Orchestrator) needsReadingPhaseLocked(i int) bool {
	if !o.sess.Config.UsesReadingPhase() {
		return false
	}
	q := o.questions[o.sess.OrderedQuestionIDs[i]]
	if q.ReadingTextID == nil || *q.ReadingTextID == "" {
		return false
	}
	if i == 0 {
		return true
	}
	prev := o.questions[o.sess.OrderedQuestionIDs[i-1]]
	return prev.ReadingTextID == nil || *prev.ReadingTextID != *q.ReadingTextID
}

func (o *Orchestrator) enterReadingLocked() {
	o.sess.Phase = models.PhaseReading
	o.sess.SecondsRemainingInPhase = o.sess.Config.ReadingSeconds

	// PAES: the shared countdown holds still while the student reads.
	if o.aggregate != nil {
		o.aggregate.Pause()
	}

	o.stopPhaseTimerLocked()
	o.phaseTimer = timer.New(o.clk, o.onReadingTick, o.onReadingExpire)
	o.phaseTimer.Start(o.sess.Config.ReadingSeconds)
}

func (o *Orchestrator) enterAnsweringLocked() {
	o.sess.Phase = models.PhaseAnswering
	o.stopPhaseTimerLocked()

	switch o.sess.Config.Mode {
	case models.ModePAES:
		if !o.sess.Config.Timed() {
			o.sess.SecondsRemainingInPhase = 0
			return
		}
		if o.aggregate == nil {
			o.aggregate = timer.New(o.clk, o.onAnswerTick, o.onAggregateExpire)
			o.aggregate.Start(o.sess.Config.SecondsPerQuestion)
			o.sess.SecondsRemainingInPhase = o.sess.Config.SecondsPerQuestion
		} else {
			o.aggregate.Resume()
			o.sess.SecondsRemainingInPhase = o.aggregate.Remaining()
		}

	case models.ModeTest:
		if !o.sess.Config.Timed() {
			o.sess.SecondsRemainingInPhase = 0
			return
		}
		o.sess.SecondsRemainingInPhase = o.sess.Config.SecondsPerQuestion
		o.phaseTimer = timer.New(o.clk, o.onAnswerTick, o.onQuestionExpire)
		o.phaseTimer.Start(o.sess.Config.SecondsPerQuestion)

	default: // review: untimed
		o.sess.SecondsRemainingInPhase = 0
	}
}

// resumeTimersLocked recreates the countdown state encoded in a snapshot.
// PAES snapshots always carry the aggregate remaining (a restored reading
// phase restarts its sub-timer from the full reading duration).
func (o *Orchestrator) resumeTimersLocked(remaining int) {
	cfg := o.sess.Config

	switch {
	case cfg.Mode == models.ModePAES && cfg.Timed():
		o.aggregate = timer.New(o.clk, o.onAnswerTick, o.onAggregateExpire)
		o.aggregate.StartWithRemaining(remaining)
		if o.sess.Phase == models.PhaseReading {
			o.aggregate.Pause()
			o.phaseTimer = timer.New(o.clk, o.onReadingTick, o.onReadingExpire)
			o.phaseTimer.Start(cfg.ReadingSeconds)
			o.sess.SecondsRemainingInPhase = cfg.ReadingSeconds
		} else {
			o.sess.SecondsRemainingInPhase = remaining
		}

	case cfg.Mode == models.ModeTest:
		if o.sess.Phase == models.PhaseReading {
			o.phaseTimer = timer.New(o.clk, o.onReadingTick, o.onReadingExpire)
			o.phaseTimer.StartWithRemaining(remaining)
		} else if cfg.Timed() {
			o.phaseTimer = timer.New(o.clk, o.onAnswerTick, o.onQuestionExpire)
			o.phaseTimer.StartWithRemaining(remaining)
		}
		o.sess.SecondsRemainingInPhase = remaining

	default:
		o.sess.SecondsRemainingInPhase = 0
	}
}

func (o *Orchestrator) stopPhaseTimerLocked() {
	if o.phaseTimer != nil {
		o.phaseTimer.Stop()
		o.phaseTimer = nil
	}
}

func (o *Orchestrator) stopAllTimersLocked() {
	o.stopPhaseTimerLocked()
	if o.aggregate != nil {
		o.aggregate.Stop()
		o.aggregate = nil
	}
}

// ===== TIMER CALLBACKS =====

func (o *Orchestrator) onReadingTick(remaining int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.exited || o.sess.Finished || o.sess.Phase != models.PhaseReading {
		return
	}
	o.sess.SecondsRemainingInPhase = remaining
}

func (o *Orchestrator) onReadingExpire() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.exited || o.sess.Finished || o.sess.Phase != models.PhaseReading {
		return
	}
	o.logger.Debug("Reading phase expired",
		"session_id", o.sess.SessionID,
		"index", o.sess.CurrentIndex)
	o.enterAnsweringLocked()
}

func (o *Orchestrator) onAnswerTick(remaining int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.exited || o.sess.Finished || o.sess.Phase != models.PhaseAnswering {
		return
	}
	o.sess.SecondsRemainingInPhase = remaining
	o.secondsIntoQuestion++
}

// onQuestionExpire handles a TEST-mode per-question timeout: whatever is
// staged gets committed (an empty, incorrect attempt otherwise) and the
// session moves on by itself.
func (o *Orchestrator) onQuestionExpire() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.exited || o.sess.Finished || o.sess.Phase != models.PhaseAnswering {
		return
	}

	i := o.sess.CurrentIndex
	o.logger.Info("Question timed out",
		"session_id", o.sess.SessionID,
		"index", i,
		"staged", o.staged != "")

	if _, answered := o.sess.Answers[i]; !answered {
		o.recordAnswerLocked(i, o.staged)
	}
	o.advanceLocked()
}

// onAggregateExpire handles the PAES whole-set timeout: the session ends
// on the spot, keeping a staged in-progress answer if there is one.
func (o *Orchestrator) onAggregateExpire() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.exited || o.sess.Finished {
		return
	}

	o.logger.Info("Aggregate timer expired, finishing session",
		"session_id", o.sess.SessionID,
		"index", o.sess.CurrentIndex)

	i := o.sess.CurrentIndex
	if _, answered := o.sess.Answers[i]; !answered && o.staged != "" {
		o.recordAnswerLocked(i, o.staged)
	}
	o.finishLocked()
}

// ===== USER-FACING OPERATIONS =====

// SelectAnswer stages an option without committing it. Staging is what a
// TEST timeout or PAES aggregate expiry will pick up.
func (o *Orchestrator) SelectAnswer(answer string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.Finished {
		return ErrSessionFinished
	}
	if o.sess.Phase != models.PhaseAnswering {
		return ErrNotAnswering
	}
	if _, answered := o.sess.Answers[o.sess.CurrentIndex]; answered {
		return ErrAlreadyAnswered
	}

	q := o.currentQuestionLocked()
	if !q.HasOption(answer) {
		return ErrInvalidOption
	}

	o.staged = answer
	return nil
}

// SubmitAnswer commits an answer for the current question and returns the
// grading outcome. In review mode the answer is immutable afterwards; in
// all modes a second submit at the same index is rejected.
func (o *Orchestrator) SubmitAnswer(answer string) (*SubmitResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.Finished {
		return nil, ErrSessionFinished
	}
	if o.sess.Phase != models.PhaseAnswering {
		return nil, ErrNotAnswering
	}
	i := o.sess.CurrentIndex
	if _, answered := o.sess.Answers[i]; answered {
		return nil, ErrAlreadyAnswered
	}

	q := o.currentQuestionLocked()
	if answer == "" {
		answer = o.staged
	}
	if !q.HasOption(answer) {
		return nil, ErrInvalidOption
	}

	attempt := o.recordAnswerLocked(i, answer)

	o.logger.Info("Answer submitted",
		"session_id", o.sess.SessionID,
		"index", i,
		"is_correct", attempt.IsCorrect)

	return &SubmitResult{
		IsCorrect:     attempt.IsCorrect,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}, nil
}

// Advance moves to the next question, or finishes the session when the
// current one was the last. Skipping without answering is allowed; the
// index simply stays unanswered.
func (o *Orchestrator) Advance() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.Finished {
		return ErrSessionFinished
	}
	if o.sess.Phase != models.PhaseAnswering {
		return ErrNotAnswering
	}

	o.advanceLocked()
	return nil
}

// Ready is the explicit "I'm done reading" action.
func (o *Orchestrator) Ready() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.Finished {
		return ErrSessionFinished
	}
	if o.sess.Phase != models.PhaseReading {
		return ErrNotReading
	}

	o.enterAnsweringLocked()
	return nil
}

// Exit tears the session down. An unfinished session is snapshotted to
// the store so it can be resumed later; a finished one has nothing left
// to save. Timers are stopped first in either case.
func (o *Orchestrator) Exit(ctx context.Context) (*models.SessionSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.exited {
		return nil, nil
	}
	o.exited = true

	snap := o.snapshotLocked()
	o.stopAllTimersLocked()

	if o.sess.Finished {
		return nil, nil
	}

	if err := o.snapshots.Save(ctx, o.sess.StudentID, snap); err != nil {
		return nil, fmt.Errorf("failed to persist session snapshot: %w", err)
	}

	o.logger.Info("Session snapshotted on exit",
		"session_id", o.sess.SessionID,
		"index", snap.CurrentIndex,
		"seconds_remaining", snap.SecondsRemainingInPhase)

	return snap, nil
}

// ===== INTERNAL MUTATIONS =====

func (o *Orchestrator) currentQuestionLocked() models.Question {
	return o.questions[o.sess.OrderedQuestionIDs[o.sess.CurrentIndex]]
}

// recordAnswerLocked writes the answers map entry (only when an option was
// actually chosen) and always appends an Attempt. Empty answer means the
// question timed out untouched.
func (o *Orchestrator) recordAnswerLocked(i int, answer string) models.Attempt {
	q := o.questions[o.sess.OrderedQuestionIDs[i]]

	if answer != "" {
		o.sess.Answers[i] = answer
	}

	seconds := o.secondsIntoQuestion
	if !o.sess.Config.Timed() {
		seconds = int(o.clk.Now().Sub(o.questionStartedAt) / time.Second)
	}

	attempt := models.Attempt{
		QuestionID:   q.ID,
		Subject:      q.Subject,
		AreaTematica: q.AreaTematica,
		Tema:         q.Tema,
		Subtema:      q.Subtema,
		Answer:       answer,
		IsCorrect:    answer != "" && answer == q.CorrectAnswer,
		SecondsSpent: seconds,
		AnsweredAt:   o.clk.Now(),
	}
	o.attempts = append(o.attempts, attempt)
	o.staged = ""
	return attempt
}

func (o *Orchestrator) advanceLocked() {
	next := o.sess.CurrentIndex + 1
	if next >= len(o.sess.OrderedQuestionIDs) {
		o.finishLocked()
		return
	}

	o.enterIndexLocked(next)
}

// finishLocked closes the session: stops timers, scores, publishes the
// attempt batch and result (best effort), and discards the snapshot slot.
func (o *Orchestrator) finishLocked() {
	o.sess.Finished = true
	o.stopAllTimersLocked()

	questions := make([]models.Question, len(o.sess.OrderedQuestionIDs))
	for i, id := range o.sess.OrderedQuestionIDs {
		questions[i] = o.questions[id]
	}

	result := scoring.Score(o.sess.SessionID, questions, o.sess.Answers, o.attempts)
	o.result = &result

	o.logger.Info("Session finished",
		"session_id", o.sess.SessionID,
		"correct", result.CorrectCount,
		"incorrect", result.IncorrectCount,
		"unanswered", result.UnansweredCount)

	o.publishLocked(events.EventAttemptsRecorded, events.AttemptBatchEvent{
		SessionID: o.sess.SessionID,
		StudentID: o.sess.StudentID,
		Subject:   o.sess.Config.Subject,
		Mode:      o.sess.Config.Mode,
		Attempts:  o.attemptsCopyLocked(),
	})
	o.publishLocked(events.EventSessionFinished, events.SessionFinishedEvent{
		SessionID: o.sess.SessionID,
		StudentID: o.sess.StudentID,
		Result:    result,
		Config:    o.sess.Config,
	})

	// A finished session has no snapshot to come back to.
	if err := o.snapshots.Clear(context.Background(), o.sess.StudentID); err != nil && !errors.Is(err, store.ErrStoreNotAvailable) {
		o.logger.Warn("Failed to clear session snapshot",
			"session_id", o.sess.SessionID,
			"error", err)
	}
}

// publishLocked is deliberately best-effort: the remote sink must never
// block or fail a state transition.
func (o *Orchestrator) publishLocked(eventType string, data interface{}) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(eventType, data); err != nil {
		o.logger.Error("Failed to publish session event",
			"session_id", o.sess.SessionID,
			"event_type", eventType,
			"error", err)
	}
}

func (o *Orchestrator) snapshotLocked() *models.SessionSnapshot {
	answers := make(map[int]string, len(o.sess.Answers))
	for k, v := range o.sess.Answers {
		answers[k] = v
	}
	ids := make([]string, len(o.sess.OrderedQuestionIDs))
	copy(ids, o.sess.OrderedQuestionIDs)

	remaining := o.sess.SecondsRemainingInPhase
	// A PAES snapshot always stores the aggregate remaining; an exited
	// reading phase restarts from the full reading duration on resume.
	// Before the first answering phase no aggregate exists yet, and the
	// whole-set budget is still untouched.
	if o.sess.Config.Mode == models.ModePAES {
		if o.aggregate != nil {
			remaining = o.aggregate.Remaining()
		} else {
			remaining = o.sess.Config.SecondsPerQuestion
		}
	}

	return &models.SessionSnapshot{
		SessionID:               o.sess.SessionID,
		StudentID:               o.sess.StudentID,
		Config:                  o.sess.Config,
		OrderedQuestionIDs:      ids,
		CurrentIndex:            o.sess.CurrentIndex,
		Phase:                   o.sess.Phase,
		Answers:                 answers,
		SecondsRemainingInPhase: remaining,
		StartedAt:               o.sess.StartedAt,
		SavedAt:                 o.clk.Now(),
	}
}

func (o *Orchestrator) attemptsCopyLocked() []models.Attempt {
	out := make([]models.Attempt, len(o.attempts))
	copy(out, o.attempts)
	return out
}

// ===== READ ACCESSORS =====

// Session returns a copy of the current session state.
func (o *Orchestrator) Session() models.PracticeSession {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess := o.sess
	sess.Answers = make(map[int]string, len(o.sess.Answers))
	for k, v := range o.sess.Answers {
		sess.Answers[k] = v
	}
	ids := make([]string, len(o.sess.OrderedQuestionIDs))
	copy(ids, o.sess.OrderedQuestionIDs)
	sess.OrderedQuestionIDs = ids
	return sess
}

// StagedAnswer returns the selected-but-not-submitted option for the
// current question, if any.
func (o *Orchestrator) StagedAnswer() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.staged
}

// CurrentQuestion returns the question at the session's current index.
func (o *Orchestrator) CurrentQuestion() models.Question {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentQuestionLocked()
}

// Result returns the terminal summary once the session has finished.
func (o *Orchestrator) Result() (*models.SessionResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.result == nil {
		return nil, false
	}
	result := *o.result
	return &result, true
}

// Attempts returns a copy of the attempts recorded so far.
func (o *Orchestrator) Attempts() []models.Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attemptsCopyLocked()
}
