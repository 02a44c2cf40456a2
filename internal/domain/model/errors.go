package model

import "errors"

// Sentinel kinds for record validation.
var (
	ErrInvalidDiagnostic  = errors.New("invalid diagnostic")
	ErrInvalidStatus      = errors.New("invalid opportunity status")
	ErrInvalidOpportunity = errors.New("invalid opportunity")
	ErrInvalidActivity    = errors.New("invalid activity")
	ErrInvalidTimestamp   = errors.New("invalid timestamp")
)
