package pipeline

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// claim loads the run and checks that it is waiting on stage. ok is false
// when the returned outcome must be reported as is.
func claim(ctx context.Context, db *gorm.DB, runID string, stage Stage) (*Run, Outcome, bool) {
	run, err := getRun(db.WithContext(ctx), runID)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return nil, outcomeErr(OutcomeNotFound, runID, stage, err), false
		}
		return nil, outcomeErr(OutcomeStoreError, runID, stage, err), false
	}
	if run.CurrentStage != stage {
		return nil, outcomeErr(OutcomeStageMismatch, runID, stage,
			&StageMismatchError{RunID: runID, Expected: stage, Actual: run.CurrentStage}), false
	}
	return run, Outcome{}, true
}

// insertLog creates a stage log row. A duplicate run_id means another
// invocation of the same stage got there first.
func insertLog(ctx context.Context, db *gorm.DB, runID string, stage Stage, row any) (Outcome, bool) {
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return outcomeErr(OutcomeStageMismatch, runID, stage, err), false
		}
		return outcomeErr(OutcomeStoreError, runID, stage, err), false
	}
	return Outcome{}, true
}
