package upload

import (
	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/errors"
)

// State is a stage of the upload lifecycle
type State int

const (
	StateIdle State = iota
	StateSelected
	StateTransferring
	StateServerProcessing
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelected:
		return "selected"
	case StateTransferring:
		return "transferring"
	case StateServerProcessing:
		return "server_processing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further automatic transition can occur
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Active reports whether a transfer is in flight
func (s State) Active() bool {
	return s == StateTransferring || s == StateServerProcessing
}

// Task is one upload. Summary is set only in StateSucceeded and Failure only
// in StateFailed.
type Task struct {
	File     *File
	State    State
	Progress int
	Summary  *domain.UploadResult
	Failure  *errors.AppError
	// ValidationReason explains the last rejected selection without changing State
	ValidationReason *errors.AppError
	Token            string
}

// Event drives a transition
type Event interface {
	event()
}

// FileSelected offers a file; it is validated as part of the transition
type FileSelected struct {
	File File
}

// SelectionRejected surfaces a selection that failed before it could be inspected
type SelectionRejected struct {
	Reason *errors.AppError
}

// Started begins the transfer for the selected file under a fresh token
type Started struct {
	Token string
}

// Progressed reports transfer progress in percent
type Progressed struct {
	Token   string
	Percent int
}

type Completed struct {
	Token   string
	Summary *domain.UploadResult
}

type Failed struct {
	Token  string
	Reason *errors.AppError
}

// Reset abandons the task from any state
type Reset struct{}

func (FileSelected) event()      {}
func (SelectionRejected) event() {}
func (Started) event()           {}
func (Progressed) event()        {}
func (Completed) event()         {}
func (Failed) event()            {}
func (Reset) event()             {}

// Reduce returns the task that results from applying ev to t. It never
// mutates t. Transfer events whose token does not match the current task,
// or that arrive after a terminal state, leave the task unchanged.
func Reduce(t Task, ev Event) Task {
	switch e := ev.(type) {
	case Reset:
		return Task{}

	case FileSelected:
		if t.State.Active() {
			return t
		}
		if reason := ValidateFile(e.File); reason != nil {
			t.ValidationReason = reason
			return t
		}
		file := e.File
		return Task{File: &file, State: StateSelected}

	case SelectionRejected:
		if t.State.Active() {
			return t
		}
		t.ValidationReason = e.Reason
		return t

	case Started:
		if t.State != StateSelected || e.Token == "" {
			return t
		}
		t.State = StateTransferring
		t.Token = e.Token
		t.Progress = 0
		t.ValidationReason = nil
		return t

	case Progressed:
		if e.Token != t.Token || t.State != StateTransferring {
			return t
		}
		percent := clampPercent(e.Percent)
		if percent <= t.Progress {
			return t
		}
		t.Progress = percent
		if percent == 100 {
			t.State = StateServerProcessing
		}
		return t

	case Completed:
		if e.Token != t.Token || !t.State.Active() || e.Summary == nil {
			return t
		}
		t.State = StateSucceeded
		t.Progress = 100
		t.Summary = e.Summary
		t.Failure = nil
		return t

	case Failed:
		if e.Token != t.Token || !t.State.Active() {
			return t
		}
		reason := e.Reason
		if reason == nil {
			reason = errors.Unknown(errors.ErrUnknown)
		}
		t.State = StateFailed
		t.Failure = reason
		t.Summary = nil
		return t
	}
	return t
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Percent converts byte counts to a whole percentage, rounding down
func Percent(sent, total int64) int {
	if total <= 0 {
		return 100
	}
	if sent >= total {
		return 100
	}
	if sent <= 0 {
		return 0
	}
	return int(sent * 100 / total)
}

func sameTask(a, b Task) bool {
	return a.State == b.State &&
		a.Progress == b.Progress &&
		a.Token == b.Token &&
		a.File == b.File &&
		a.Summary == b.Summary &&
		a.Failure == b.Failure &&
		a.ValidationReason == b.ValidationReason
}
