package scan

import "errors"

var (
	// ErrInsufficientInput means no detector produced a usable signal, so
	// no verdict can honestly be issued.
	ErrInsufficientInput = errors.New("no usable detector signal")

	// ErrDeadlineExceeded means the scan deadline expired before any
	// detector finished.
	ErrDeadlineExceeded = errors.New("scan deadline exceeded")
)
