package campaign

import "errors"

var (
	// ErrUnknownCategory is returned for a category id not in the table.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrInvalidKeyword is returned for an empty keyword or a negative weight.
	ErrInvalidKeyword = errors.New("keyword must be non-empty with a non-negative weight")
	// ErrStoreUnavailable is returned when no cohort store is configured.
	ErrStoreUnavailable = errors.New("cohort store not configured")
	// ErrAnalyzerUnavailable is returned when no video analyzer is configured.
	ErrAnalyzerUnavailable = errors.New("video analyzer not configured")
)
