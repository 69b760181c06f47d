package trigger

import "errors"

var (
	// ErrEmptyInput indicates a raw history without a single usable point.
	ErrEmptyInput = errors.New("trigger: empty input")
	// ErrInsufficientData indicates fewer clean points than the averaging window.
	ErrInsufficientData = errors.New("trigger: insufficient data")
	// ErrInvalidConfig indicates a rejected window or threshold configuration.
	ErrInvalidConfig = errors.New("trigger: invalid config")
)

// ErrorCode classifies why a symbol could not be evaluated.
type ErrorCode string

const (
	ErrorDataUnavailable     ErrorCode = "DATA_UNAVAILABLE"
	ErrorInsufficientHistory ErrorCode = "INSUFFICIENT_HISTORY"
)

// classifyError maps a fetch or normalization failure to a result code.
func classifyError(err error) ErrorCode {
	if errors.Is(err, ErrInsufficientData) {
		return ErrorInsufficientHistory
	}
	return ErrorDataUnavailable
}
