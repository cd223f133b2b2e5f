package nutrition

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput marks a request that is missing its required payload.
	ErrInvalidInput = errors.New("invalid data")
	// ErrAnalysisFailed is returned when the model call itself fails.
	ErrAnalysisFailed = errors.New("failed to analyze food image")
)

// UnsafeContentError is returned when moderation flags the uploaded image.
type UnsafeContentError struct {
	Categories []string
}

func (e *UnsafeContentError) Error() string {
	return "Image contains flagged content: " + strings.Join(e.Categories, ", ")
}

// IsUnsafeContent unwraps err looking for an UnsafeContentError.
func IsUnsafeContent(err error) (*UnsafeContentError, bool) {
	var ue *UnsafeContentError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
