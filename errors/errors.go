package errors

import "fmt"

var (
	ErrAuthRequired   = fmt.Errorf("authentication required")
	ErrInvalidToken   = fmt.Errorf("invalid or expired token")
	ErrForbidden      = fmt.Errorf("forbidden")
	ErrNotFound       = fmt.Errorf("message not found")
	ErrGroupNotFound  = fmt.Errorf("group not found")
	ErrMalformedFrame = fmt.Errorf("malformed frame")
	ErrMissingTarget  = fmt.Errorf("message needs exactly one of receiver or group")
	ErrEmptyMessage   = fmt.Errorf("message has neither content nor media")
	ErrWorkerPanic    = fmt.Errorf("worker panic")
)
