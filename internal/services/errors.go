// Package services defines the business logic of the alerting core: the
// alert store operations exposed to API callers, deduplicated persistence of
// evaluator candidates, and the dashboard summary.
//
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Alert-related errors.
var (
	// ErrAlertNotFound indicates that the requested alert does not exist or
	// belongs to another user.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidKind is returned when a kind is outside the closed set.
	ErrInvalidKind = errors.New("invalid alert kind")

	// ErrInvalidPriority is returned when a priority is not one of
	// baixa, media, alta or urgente.
	ErrInvalidPriority = errors.New("invalid alert priority")

	// ErrTitleRequired is returned when a manual alert has a blank title.
	ErrTitleRequired = errors.New("title is required")

	// ErrTooLong is returned when a title or message exceeds the configured
	// maximum length.
	ErrTooLong = errors.New("field too long")

	// ErrInvalidReferenceDate is returned when data_referencia cannot be parsed.
	ErrInvalidReferenceDate = errors.New("invalid reference date")
)

