package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConversationBusy = errors.New("conversation already has a run in flight")

	// Remote job outcomes
	ErrRunFailed   = errors.New("remote run failed")
	ErrPollTimeout = errors.New("analysis took too long to complete")
)
