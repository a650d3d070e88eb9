// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package supervisor

// State is the supervisor-side processing state. Within one job it only
// moves forward; it returns to Idle only when a new job starts from a
// terminal state.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateProcessing
	StateCancelling
	StateCancelled
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateProcessing:
		return "processing"
	case StateCancelling:
		return "cancelling"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether a job currently owns the manager.
func (s State) Active() bool {
	switch s {
	case StatePreparing, StateProcessing, StateCancelling:
		return true
	default:
		return false
	}
}

// Terminal reports whether the job has reached its final state.
func (s State) Terminal() bool {
	switch s {
	case StateCancelled, StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// validTransition enforces the forward-only edges of the job lifetime.
func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StatePreparing
	case StatePreparing:
		return to == StateProcessing || to == StateCancelling || to.Terminal()
	case StateProcessing:
		return to == StateProcessing || to == StateCancelling || to.Terminal()
	case StateCancelling:
		return to.Terminal()
	case StateCancelled, StateCompleted, StateFailed:
		return to == StatePreparing || to == StateIdle
	default:
		return false
	}
}
