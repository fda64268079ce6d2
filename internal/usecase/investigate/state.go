package investigate

import "go.uber.org/zap"

// State identifies where a running task is in its lifecycle. States exist
// for observability; the orchestrator drives them strictly forward except
// for the AssessingInsight -> Optimizing loop edge.
type State string

const (
	StateIdle               State = "idle"
	StateDecidingEscalation State = "deciding_escalation"
	StateOptimizing         State = "optimizing"
	StateRetrieving         State = "retrieving"
	StatePersisting         State = "persisting"
	StateEvaluating         State = "evaluating"
	StateAssessingInsight   State = "assessing_insight"
	StateSynthesizing       State = "synthesizing"
	StateDone               State = "done"
	StateAborted            State = "aborted"
)

// validTransitions is the allowed edge set of the task lifecycle.
var validTransitions = map[State][]State{
	StateIdle:               {StateDecidingEscalation},
	StateDecidingEscalation: {StateOptimizing, StateDone, StateAborted},
	StateOptimizing:         {StateRetrieving, StateAssessingInsight, StateSynthesizing, StateAborted},
	StateRetrieving:         {StateRetrieving, StatePersisting, StateAssessingInsight, StateSynthesizing, StateAborted},
	StatePersisting:         {StateEvaluating, StateRetrieving, StateAssessingInsight, StateAborted},
	StateEvaluating:         {StateRetrieving, StateAssessingInsight, StateSynthesizing, StateAborted},
	StateAssessingInsight:   {StateOptimizing, StateSynthesizing, StateAborted},
	StateSynthesizing:       {StateDone, StateAborted},
}

// ValidTransition reports whether the lifecycle allows moving from one
// state to another.
func ValidTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// tracker carries the current state of one task run and logs every move.
type tracker struct {
	state  State
	logger *zap.Logger
}

func newTracker(logger *zap.Logger) *tracker {
	return &tracker{state: StateIdle, logger: logger}
}

func (t *tracker) to(next State) {
	if !ValidTransition(t.state, next) {
		// A wrong edge is a bug in the orchestrator, not the task.
		t.logger.Error("Invalid task state transition",
			zap.String("from", string(t.state)), zap.String("to", string(next)))
	}
	t.logger.Debug("Task state transition",
		zap.String("from", string(t.state)), zap.String("to", string(next)))
	t.state = next
}
