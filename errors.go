// Copyright 2016 Aleksandr Demakin. All rights reserved.

package ipc

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrPeerClosed is returned by a receive operation, when the other party closed its end.
	// It is a normal termination signal, not a failure.
	ErrPeerClosed = errors.New("peer closed")
	// ErrShutdown is returned by a mailbox poll, when the writer has requested shutdown.
	ErrShutdown = errors.New("shutdown requested")
)

// SetupError is a failure to create or attach a resource. It is always fatal.
// Stage is the name of the step, which failed. It is used as the event name in logs.
type SetupError struct {
	Stage string
	Err   error
}

// NewSetupError wraps err as a failure of the given stage.
func NewSetupError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &SetupError{Stage: stage, Err: err}
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Cause is to support errors.Cause.
func (e *SetupError) Cause() error {
	return e.Err
}

// Unwrap is to support errors.Is and errors.As.
func (e *SetupError) Unwrap() error {
	return e.Err
}

// IsSetupError returns true, if there is a SetupError in err's chain.
func IsSetupError(err error) bool {
	var setupErr *SetupError
	return errors.As(err, &setupErr)
}

// SetupStage returns the stage of the first SetupError in err's chain, or an empty string.
func SetupStage(err error) string {
	var setupErr *SetupError
	if errors.As(err, &setupErr) {
		return setupErr.Stage
	}
	return ""
}
