package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Governance errors.
var (
	ErrInvalidCandidate        = New("INVALID_CANDIDATE", http.StatusBadRequest, "candidate account is required")
	ErrInvalidRole             = New("INVALID_ROLE", http.StatusBadRequest, "role must be BOARD, TEACHER or STUDENT")
	ErrAlreadyInRole           = New("ALREADY_IN_ROLE", http.StatusConflict, "account already holds a role")
	ErrAlreadyHasRole          = New("ALREADY_HAS_ROLE", http.StatusConflict, "candidate already holds the requested role")
	ErrDuplicateActiveProposal = New("DUPLICATE_ACTIVE_PROPOSAL", http.StatusConflict, "candidate already has an active proposal")
	ErrVotingClosed            = New("VOTING_CLOSED", http.StatusUnprocessableEntity, "voting window is closed")
	ErrVotingStillOpen         = New("VOTING_STILL_OPEN", http.StatusUnprocessableEntity, "voting window has not ended")
	ErrNotInElectorate         = New("NOT_IN_ELECTORATE", http.StatusForbidden, "caller role may not vote on this proposal")
	ErrDuplicateVote           = New("DUPLICATE_VOTE", http.StatusConflict, "caller already voted")
	ErrAlreadyExecuted         = New("ALREADY_EXECUTED", http.StatusConflict, "proposal already executed")
)

// Catalog errors.
var (
	ErrEmptyTeacherList    = New("EMPTY_TEACHER_LIST", http.StatusBadRequest, "course requires at least one teacher")
	ErrLengthMismatch      = New("LENGTH_MISMATCH", http.StatusBadRequest, "teacher and share lists differ in length")
	ErrSharesSum           = New("SHARES_MUST_SUM_TO_10000", http.StatusBadRequest, "teacher shares must sum to 10000 basis points")
	ErrDuplicateTeacher    = New("DUPLICATE_TEACHER", http.StatusBadRequest, "teacher listed more than once")
	ErrUnregisteredTeacher = New("UNREGISTERED_TEACHER", http.StatusBadRequest, "listed account does not hold the teacher role")
)

// Enrollment errors.
var (
	ErrAlreadyActive           = New("ALREADY_ACTIVE", http.StatusConflict, "an active enrollment request already exists")
	ErrNoApplication           = New("NO_APPLICATION", http.StatusNotFound, "no enrollment request for this course and student")
	ErrNotCourseTeacher        = New("NOT_COURSE_TEACHER", http.StatusForbidden, "caller is not a teacher of this course")
	ErrAlreadyEnrolled         = New("ALREADY_ENROLLED", http.StatusConflict, "student is already enrolled")
	ErrNotPendingOrNotAccepted = New("NOT_PENDING_OR_NOT_ACCEPTED", http.StatusUnprocessableEntity, "request is missing, already enrolled, or not accepted by teachers")
	ErrZeroPriceCourse         = New("ZERO_PRICE_COURSE", http.StatusUnprocessableEntity, "zero-price courses have no payment step")
	ErrStudentNotEnrolled      = New("STUDENT_NOT_ENROLLED", http.StatusUnprocessableEntity, "student is not enrolled in this course")
	ErrAlreadyCompleted        = New("ALREADY_COMPLETED", http.StatusConflict, "course already completed for this student")
)

// Rating and treasury errors.
var (
	ErrInvalidRatingValue   = New("INVALID_RATING_VALUE", http.StatusBadRequest, "rating must be between 1 and 5")
	ErrTeacherNotInCourse   = New("TEACHER_NOT_IN_COURSE", http.StatusBadRequest, "teacher is not listed on this course")
	ErrZeroAmount           = New("ZERO_AMOUNT", http.StatusBadRequest, "amount must be positive")
	ErrNoWeight             = New("NO_WEIGHT", http.StatusUnprocessableEntity, "total rating weight is zero")
	ErrInsufficientTreasury = New("INSUFFICIENT_TREASURY", http.StatusUnprocessableEntity, "treasury balance is insufficient")
	ErrPaymentFailed        = New("PAYMENT_FAILED", http.StatusUnprocessableEntity, "ledger rejected the transfer")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
