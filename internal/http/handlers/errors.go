// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them instead
// of parsing messages. Generic codes mirror HTTP status semantics; the
// alert-specific ones name the operation that failed.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeUpdateFailed = "update_failed"
	ErrCodeDeleteFailed = "delete_failed"
	ErrCodeUnknownJob   = "unknown_job"
	ErrCodeJobRunning   = "job_running"
)
