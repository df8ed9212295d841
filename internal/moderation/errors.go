package moderation

import "errors"

// ErrNotFound indicates the user or report being acted on does not exist.
// Operations abort with no partial state change.
var ErrNotFound = errors.New("not found")

// ErrReportResolved indicates the report has already left the pending state.
var ErrReportResolved = errors.New("report already resolved")

// ValidationError indicates input was rejected before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on " + e.Field + ": " + e.Message
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
