package pipeline

import "fmt"

type Stage string

const (
	StageCurator    Stage = "curator"
	StageEditor     Stage = "editor"
	StageDispatcher Stage = "dispatcher"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// transitions is the complete table of forward moves. failed is reachable
// from every working stage through Coordinator.Fail and is not listed here.
var transitions = map[Stage]Stage{
	StageCurator:    StageEditor,
	StageEditor:     StageDispatcher,
	StageDispatcher: StageCompleted,
}

func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case StageCurator, StageEditor, StageDispatcher, StageCompleted, StageFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Working reports whether a run in this stage still has work to do.
func (s Stage) Working() bool {
	_, ok := transitions[s]
	return ok
}

func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Next returns the stage that follows s on success.
func (s Stage) Next() (Stage, bool) {
	n, ok := transitions[s]
	return n, ok
}

func CanAdvance(from, to Stage) bool {
	n, ok := transitions[from]
	return ok && n == to
}

func WorkingStages() []string {
	return []string{string(StageCurator), string(StageEditor), string(StageDispatcher)}
}
