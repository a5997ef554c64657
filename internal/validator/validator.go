package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/branchpoll/pkg/domain"
)

// Length bounds, in characters, of trimmed authored text.
const (
	MaxNameLength     = 100
	MaxQuestionLength = 300
	MaxAnswerLength   = 50
)

// Error is a single text constraint failure.
type Error struct {
	Field  string // "name", "question" or "answer"
	Kind   domain.ErrorKind
	Limit  int
	Length int
}

func (e *Error) Error() string {
	if e.Kind == domain.KindEmptyInput {
		return fmt.Sprintf("%s must not be empty", e.Field)
	}
	return fmt.Sprintf("%s is %d characters long, the limit is %d", e.Field, e.Length, e.Limit)
}

// ErrorKind exposes the reason code to domain.KindOf.
func (e *Error) ErrorKind() domain.ErrorKind {
	return e.Kind
}

// ValidateName checks a poll name.
func ValidateName(s string) error {
	return check("name", s, MaxNameLength)
}

// ValidateQuestionText checks the text of a question line, marker included.
func ValidateQuestionText(s string) error {
	return check("question", s, MaxQuestionLength)
}

// ValidateAnswerText checks the text of an answer line.
func ValidateAnswerText(s string) error {
	return check("answer", s, MaxAnswerLength)
}

func check(field, s string, limit int) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return &Error{Field: field, Kind: domain.KindEmptyInput, Limit: limit}
	}
	if n := utf8.RuneCountInString(trimmed); n > limit {
		return &Error{Field: field, Kind: domain.KindTooLong, Limit: limit, Length: n}
	}
	return nil
}
