package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the symbol has no rows, or no model artifact exists for it.
	ErrNotFound = errors.New("not found")

	// ErrNoData is raised by classifiers handed an empty series. It is a NotFound.
	ErrNoData = fmt.Errorf("no data: %w", ErrNotFound)

	// ErrInsufficientHistory means fewer observations than an operation requires.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrUnknownTimeframe is a configuration error for an unrecognized selector.
	ErrUnknownTimeframe = errors.New("unknown timeframe")
)

// InsufficientHistoryError reports how many observations were available.
type InsufficientHistoryError struct {
	Have int
	Need int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: have %d points, need %d", e.Have, e.Need)
}

func (e *InsufficientHistoryError) Is(target error) bool {
	return target == ErrInsufficientHistory
}

// UpstreamError wraps a failure raised by a store or predictor.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return "upstream " + e.Op + ": " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError unless it is nil or already a
// NotFound, which must keep its client-facing meaning.
func Upstream(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// NotFoundf builds a NotFound error with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
