package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dhirajc963/timebrew.news/internal/pipeline"
)

// StageMessage asks a worker to execute one stage of one run.
type StageMessage struct {
	MessageID string         `json:"message_id"`
	RunID     string         `json:"run_id"`
	Stage     pipeline.Stage `json:"stage"`
}

var ErrBadMessage = errors.New("rabbitmq: bad stage message")

func DecodeStageMessage(body []byte) (StageMessage, error) {
	var m StageMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	m.RunID = strings.TrimSpace(m.RunID)
	if m.RunID == "" {
		return m, fmt.Errorf("%w: missing run_id", ErrBadMessage)
	}
	st, err := pipeline.ParseStage(string(m.Stage))
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if !st.Working() {
		return m, fmt.Errorf("%w: stage %s has no work", ErrBadMessage, st)
	}
	m.Stage = st
	return m, nil
}
