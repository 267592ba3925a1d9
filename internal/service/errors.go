package service

import (
	"errors"
	"fmt"
)

var (
	ErrSessionEnded        = errors.New("session has ended")
	ErrWebhookAuthenticity = errors.New("webhook authenticity check failed")
)

// ValidationError ошибка входных данных, сообщение отдаётся клиенту как есть
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ConflictError состояние изменилось, клиенту нужно перечитать данные
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// OverlapError новый слот пересекается с существующим
type OverlapError struct {
	TeacherID int64
}

func (e *OverlapError) Error() string { return "slot overlaps an existing slot" }

type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %d not found", e.Entity, e.ID) }

// ExternalServiceError недоступен платёжный шлюз или видеоплатформа.
// Подробности только в логах, клиенту уходит общее сообщение.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// TooEarlyError вход в сессию раньше окна допуска
type TooEarlyError struct {
	MinutesRemaining int
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("session opens in %d minutes", e.MinutesRemaining)
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func forbidden(reason string) error {
	return &AuthorizationError{Reason: reason}
}

func notFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

const (
	servicePayments = "payment gateway"
	serviceVideo    = "video platform"
)
