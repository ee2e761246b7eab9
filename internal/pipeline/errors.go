package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRunNotFound       = errors.New("run not found")
	ErrBrewNotFound      = errors.New("brew not found")
	ErrBrewInactive      = errors.New("brew is inactive")
	ErrRunInProgress     = errors.New("run already in progress")
	ErrStageMismatch     = errors.New("stage mismatch")
	ErrIllegalTransition = errors.New("illegal stage transition")
)

// ConflictError is returned by CreateRun when the brew already has a run in
// a working stage.
type ConflictError struct {
	RunID     string
	Stage     Stage
	CreatedAt time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("run %s already in progress (stage %s)", e.RunID, e.Stage)
}

func (e *ConflictError) Is(target error) bool { return target == ErrRunInProgress }

type StageMismatchError struct {
	RunID    string
	Expected Stage
	Actual   Stage
}

func (e *StageMismatchError) Error() string {
	return fmt.Sprintf("run %s: expected stage %s, found %s", e.RunID, e.Expected, e.Actual)
}

func (e *StageMismatchError) Is(target error) bool { return target == ErrStageMismatch }
