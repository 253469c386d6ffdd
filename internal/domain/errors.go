package domain

import "errors"

var (
	// ErrInvalidThresholdOrder is returned before any state is touched when
	// a threshold list is not strictly ascending.
	ErrInvalidThresholdOrder = errors.New("thresholds must be strictly ascending")

	// ErrInsufficientTrainingData is returned when a classifier call would
	// be made with fewer than the required examples per class.
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	// ErrClassifierRequestFailed wraps network or remote failures from the
	// external classifier. Prior engine state is left untouched.
	ErrClassifierRequestFailed = errors.New("classifier request failed")

	// ErrNodeNotFound is returned when a tree operation names a node id that
	// no longer resolves (for example a bin that disappeared after a rebin).
	ErrNodeNotFound = errors.New("partition node not found")

	// ErrStageNotCommitted is returned when a stage transition needs the
	// previous stage's commit and none exists.
	ErrStageNotCommitted = errors.New("stage has not been committed")
)
