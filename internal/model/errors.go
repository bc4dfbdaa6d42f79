package model

import "errors"

// Pipeline errors. Lower layers wrap these with context; the coordinator
// matches them with errors.Is to pick the user-visible message.
var (
	ErrExtraction        = errors.New("extraction failed")
	ErrNetwork           = errors.New("network error")
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrFileNotFound      = errors.New("downloaded file not found")
	ErrCancelled         = errors.New("cancelled")
	ErrIO                = errors.New("local i/o error")

	ErrSessionBusy    = errors.New("a download is already in progress")
	ErrSessionExpired = errors.New("session expired")
	ErrNotAuthorized  = errors.New("not authorized")
	ErrInvalidPayload = errors.New("invalid callback payload")
)
