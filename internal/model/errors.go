package model

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrInsufficientData    = errors.New("insufficient data")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrInternalConsistency = errors.New("internal consistency violation")
)

// InsufficientDataError is returned when a series is shorter than the
// strategy's minimum lookback. No partial result is produced.
type InsufficientDataError struct {
	Symbol string
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: have %d bars, need %d", e.Symbol, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// InvalidParameterError reports an out-of-range or nonsensical configuration.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

func (e *InvalidParameterError) Is(target error) bool { return target == ErrInvalidParameter }

// InternalConsistencyError signals a structural invariant violation inside the
// engine (a defect, not bad input).
type InternalConsistencyError struct {
	Reason string
}

func (e *InternalConsistencyError) Error() string {
	return "internal consistency violation: " + e.Reason
}

func (e *InternalConsistencyError) Is(target error) bool { return target == ErrInternalConsistency }
