package pipeline

import (
	"context"
	"errors"
	"fmt"
)

type OutcomeKind string

const (
	OutcomeOK            OutcomeKind = "ok"
	OutcomeStageMismatch OutcomeKind = "stage_mismatch"
	OutcomeNotFound      OutcomeKind = "not_found"
	OutcomeUpstreamError OutcomeKind = "upstream_error"
	OutcomeParseError    OutcomeKind = "parse_error"
	OutcomeDeliveryError OutcomeKind = "delivery_error"
	OutcomeStoreError    OutcomeKind = "store_error"
)

// Outcome is what a worker reports back to the Runner. Workers never call
// Fail themselves; the Runner decides from Kind.
type Outcome struct {
	Kind  OutcomeKind
	RunID string
	Stage Stage
	// Next is the stage the run was advanced to on OutcomeOK.
	Next Stage
	Err  error
}

// Failed reports whether the run should be parked in failed.
func (o Outcome) Failed() bool {
	switch o.Kind {
	case OutcomeUpstreamError, OutcomeParseError, OutcomeDeliveryError, OutcomeStoreError:
		return true
	}
	return false
}

func (o Outcome) String() string {
	if o.Err == nil {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s: %v", o.Kind, o.Err)
}

// Worker executes a single stage for a run.
type Worker interface {
	Stage() Stage
	Run(ctx context.Context, runID string) Outcome
}

func outcomeOK(runID string, stage, next Stage) Outcome {
	return Outcome{Kind: OutcomeOK, RunID: runID, Stage: stage, Next: next}
}

func outcomeErr(kind OutcomeKind, runID string, stage Stage, err error) Outcome {
	return Outcome{Kind: kind, RunID: runID, Stage: stage, Err: err}
}

// fromAdvanceErr maps an Advance/AdvanceTx error to an outcome. Losing the
// race to another invocation surfaces as a mismatch.
func fromAdvanceErr(runID string, stage Stage, err error) Outcome {
	switch {
	case errors.Is(err, ErrStageMismatch):
		return outcomeErr(OutcomeStageMismatch, runID, stage, err)
	case errors.Is(err, ErrRunNotFound):
		return outcomeErr(OutcomeNotFound, runID, stage, err)
	default:
		return outcomeErr(OutcomeStoreError, runID, stage, err)
	}
}
