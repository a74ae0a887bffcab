package chat

import (
	"time"

	"github.com/google/uuid"
)

// StepStatus is the state of one tool-call step
type StepStatus string

const (
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
)

// AgentStepItem is a single tool invocation recorded during a run
type AgentStepItem struct {
	ID     string
	Name   string
	Status StepStatus
}

// AgentRunState tracks the tool-call steps and elapsed time of one
// assistant message's generation. One run state exists per assistant
// message, addressed by message id.
type AgentRunState struct {
	MessageID      string
	Steps          []AgentStepItem
	ElapsedSeconds int
	IsActive       bool

	// baseline is set lazily on the first tool start; zero means no tool
	// call has happened and elapsed stays 0
	baseline time.Time
}

// NewAgentRunState creates an active run state for the given assistant message
func NewAgentRunState(messageID string) *AgentRunState {
	return &AgentRunState{
		MessageID: messageID,
		IsActive:  true,
	}
}

// StartStep appends a running step and arms the elapsed timer baseline on
// the first call
func (rs *AgentRunState) StartStep(name string, now time.Time) AgentStepItem {
	if rs.baseline.IsZero() {
		rs.baseline = now
	}

	step := AgentStepItem{
		ID:     uuid.NewString(),
		Name:   name,
		Status: StepRunning,
	}
	rs.Steps = append(rs.Steps, step)
	return step
}

// EndStep marks the most recent running step with the given name as done.
// With an empty name the most recent running step closes regardless of name.
func (rs *AgentRunState) EndStep(name string) bool {
	for i := len(rs.Steps) - 1; i >= 0; i-- {
		if rs.Steps[i].Status != StepRunning {
			continue
		}
		if name != "" && rs.Steps[i].Name != name {
			continue
		}
		rs.Steps[i].Status = StepDone
		return true
	}
	return false
}

// Tick recomputes elapsed seconds from the baseline. A run with no tool
// calls keeps elapsed at 0.
func (rs *AgentRunState) Tick(now time.Time) {
	if rs.baseline.IsZero() {
		return
	}
	rs.ElapsedSeconds = int(now.Sub(rs.baseline) / time.Second)
}

// TimerArmed reports whether a tool call has set the elapsed baseline
func (rs *AgentRunState) TimerArmed() bool {
	return !rs.baseline.IsZero()
}

// Finalize deactivates the run state and settles the elapsed counter.
// Any steps still running are closed.
func (rs *AgentRunState) Finalize(now time.Time) {
	rs.Tick(now)
	rs.IsActive = false
	for i := range rs.Steps {
		if rs.Steps[i].Status == StepRunning {
			rs.Steps[i].Status = StepDone
		}
	}
}

// RunningSteps returns the names of steps still running, oldest first
func (rs *AgentRunState) RunningSteps() []string {
	var names []string
	for _, step := range rs.Steps {
		if step.Status == StepRunning {
			names = append(names, step.Name)
		}
	}
	return names
}
