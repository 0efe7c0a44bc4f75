package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ===== Error model =====
type Code string

const (
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeNotFound             Code = "NOT_FOUND"
	CodeConflict             Code = "CONFLICT"
	CodeReferentialIntegrity Code = "REFERENTIAL_INTEGRITY"
	CodeInvalidTransition    Code = "INVALID_TRANSITION"
	CodeConcurrencyConflict  Code = "CONCURRENCY_CONFLICT"
	CodeUnauthenticated      Code = "UNAUTHENTICATED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeInternal             Code = "INTERNAL"
)

// Violation は Validation エラーの1件（どのフィールドがどのルールに違反したか）
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type Error struct {
	Code       Code
	Message    string
	Violations []Violation
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// HasRule: 指定ルールの違反を含むか
func (e *Error) HasRule(field, rule string) bool {
	for _, v := range e.Violations {
		if v.Field == field && v.Rule == rule {
			return true
		}
	}
	return false
}

func Invalid(msg string) *Error     { return &Error{Code: CodeInvalidArgument, Message: msg} }
func NotFound(msg string) *Error    { return &Error{Code: CodeNotFound, Message: msg} }
func Conflict(msg string) *Error    { return &Error{Code: CodeConflict, Message: msg} }
func Referenced(msg string) *Error  { return &Error{Code: CodeReferentialIntegrity, Message: msg} }
func Transition(msg string) *Error  { return &Error{Code: CodeInvalidTransition, Message: msg} }
func Concurrency(msg string) *Error { return &Error{Code: CodeConcurrencyConflict, Message: msg} }
func Forbidden(msg string) *Error   { return &Error{Code: CodeForbidden, Message: msg} }
func Internal(msg string) *Error    { return &Error{Code: CodeInternal, Message: msg} }

// Validation は違反リストから INVALID_ARGUMENT を組み立てる。違反が無ければ nil。
func Validation(vs []Violation) error {
	if len(vs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(vs))
	for _, v := range vs {
		msgs = append(msgs, v.Field+": "+v.Message)
	}
	return &Error{Code: CodeInvalidArgument, Message: strings.Join(msgs, "; "), Violations: vs}
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}
