package services

import "errors"

// ===== SERVICE ERRORS =====

var (
	// Session lifecycle
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoActiveSession   = errors.New("student has no active session")
	ErrSessionInProgress = errors.New("student already has a session in progress")
	ErrSessionFinished   = errors.New("session already finished")
	ErrSessionNotDone    = errors.New("session is still in progress")

	// Snapshots
	ErrSnapshotNotFound = errors.New("no resumable session snapshot")

	// Question pool
	ErrSubjectEmpty      = errors.New("no questions available for subject")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrQuestionsMissing  = errors.New("snapshot references questions no longer present")
	ErrNoRetryableErrors = errors.New("no incorrectly answered questions to retry")

	// Import
	ErrImportEmptyFile     = errors.New("import file contains no rows")
	ErrImportInvalidFormat = errors.New("import file has an invalid format")

	// Authorization
	ErrUnauthorized = errors.New("user does not own this session")
)
