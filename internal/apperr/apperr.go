// Package apperr описывает таксономию ошибок бизнес-логики.
package apperr

import (
	"errors"
	"fmt"
)

// Kind описывает стабильный тип ошибки, по которому ветвятся клиенты.
type Kind string

const (
	KindNotFound               Kind = "NotFound"
	KindForbidden              Kind = "Forbidden"
	KindInvalidStateTransition Kind = "InvalidStateTransition"
	KindConflict               Kind = "Conflict"
	KindInvalidArgument        Kind = "InvalidArgument"
	KindInternal               Kind = "Internal"
)

// Error описывает ошибку бизнес-логики с типом и сообщением для клиента.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Ошибки-образцы для сравнения через errors.Is: совпадение определяется только типом.
var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrForbidden              = &Error{Kind: KindForbidden}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrConflict               = &Error{Kind: KindConflict}
	ErrInvalidArgument        = &Error{Kind: KindInvalidArgument}
	ErrInternal               = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по типу.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New создаёт ошибку указанного типа.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает ошибку err, присваивая ей тип и сообщение.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf возвращает тип ошибки. Ошибки без типа считаются внутренними.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf возвращает сообщение для клиента. Детали внутренних ошибок не раскрываются.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return "internal error"
		}
		if e.Message != "" {
			return e.Message
		}
		return string(e.Kind)
	}
	return "internal error"
}
