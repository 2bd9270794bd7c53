package engine

import "errors"

// ===== COMMON ENGINE ERRORS =====

var (
	// Fatal, non-retryable: aborts quiz entry.
	ErrMaxAttemptsExceeded = errors.New("maximum attempts exceeded")

	// Quiz / question bank errors
	ErrQuizNotFound = errors.New("quiz not found")

	// Ledger errors
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrLedgerUnavailable  = errors.New("attempt ledger unreachable")
	ErrAttemptNotActive   = errors.New("attempt is not active")
	ErrAttemptTimeExpired = errors.New("attempt time has expired")

	// Session errors
	ErrSessionAlreadyStarted      = errors.New("session already started for this attempt")
	ErrSessionNotActive           = errors.New("session is not active")
	ErrSessionAlreadySubmitted    = errors.New("session already submitted")
	ErrSubmitConfirmationRequired = errors.New("unanswered questions remain - confirmation required to submit")
	ErrQuestionNotFound           = errors.New("question not found in this quiz")
	ErrAnswerTypeMismatch         = errors.New("answer shape does not match question type")
	ErrQuestionIndexOutOfRange    = errors.New("question index out of range")
	ErrScorerUnavailable          = errors.New("authoritative scorer unreachable")
	ErrSubmitInProgress           = errors.New("submission already in progress")
	ErrShuffleMapMissing          = errors.New("question has no shuffle map and cannot be scored")
)

// IsOutage reports whether the error means the ledger could not be reached
// at all, as opposed to reaching it and getting a real answer.
func IsOutage(err error) bool {
	return errors.Is(err, ErrLedgerUnavailable)
}

// IsNotFound reports whether the error represents a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrQuestionNotFound)
}

// IsConflict reports whether the error represents a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSessionAlreadyStarted) ||
		errors.Is(err, ErrSessionAlreadySubmitted) ||
		errors.Is(err, ErrAttemptTimeExpired) ||
		errors.Is(err, ErrMaxAttemptsExceeded)
}
