package priority

import "errors"

// Sentinel kinds for classification input errors.
var (
	ErrScoreOutOfRange = errors.New("score out of range")
	ErrUnknownLabel    = errors.New("unknown priority label")
	ErrUnknownStage    = errors.New("unknown pipeline stage")
)
