package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-checkable reason of a compile or validation failure.
type ErrorKind string

const (
	KindEmptyStructure         ErrorKind = "EmptyStructure"
	KindBadIndent              ErrorKind = "BadIndent"
	KindMissingRootQuestion    ErrorKind = "MissingRootQuestion"
	KindMultipleRoots          ErrorKind = "MultipleRoots"
	KindNoParentAtLevel        ErrorKind = "NoParentAtLevel"
	KindNoParentAnswer         ErrorKind = "NoParentAnswer"
	KindBranchConflict         ErrorKind = "BranchConflict"
	KindAnswerBeforeQuestion   ErrorKind = "AnswerBeforeQuestion"
	KindLevelMismatch          ErrorKind = "LevelMismatch"
	KindDuplicateAnswer        ErrorKind = "DuplicateAnswer"
	KindQuestionWithoutAnswers ErrorKind = "QuestionWithoutAnswers"
	KindEmptyInput             ErrorKind = "EmptyInput"
	KindTooLong                ErrorKind = "TooLong"
)

// CompileError is returned when poll text cannot be compiled.
// Line is 1-based and refers to the physical line of the input (0 when the
// failure is not tied to a line).
type CompileError struct {
	Line   int
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *CompileError) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from a compile or validation error chain.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	var k interface{ ErrorKind() ErrorKind }
	if errors.As(err, &k) {
		return k.ErrorKind(), true
	}
	return "", false
}

// Session errors. Recoverable: the host re-prompts with the same question.
var (
	ErrUnknownAnswer     = errors.New("unknown answer")
	ErrSessionNotStarted = errors.New("session not started")
	ErrSessionTerminated = errors.New("session already terminated")
	ErrSessionNotFound   = errors.New("session not found")
)

// Poll errors.
var (
	ErrPollNotFound = errors.New("poll not found")
	ErrNotOwner     = errors.New("not the poll owner")
)

// Invariant violations. These indicate a bug in the compiler or a corrupted store.
var (
	ErrEmptyGraph      = errors.New("graph has no questions")
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrInvalidGraph    = errors.New("invalid graph")
)
