// Package faults schedules and applies the pseudo-random off-nominal
// event injected during an EVA, by reclassifying a field's algorithm
// rather than introducing a new algorithm kind.
package faults

import (
	"math/rand"

	"github.com/tss-groundstation/stationd/internal/registry"
)

// Type enumerates the fault classes. None is the explicit "no fault
// pending" state.
type Type int

const (
	None Type = iota
	SuitOxyLow
	SuitOxyHigh
	FanHigh
	FanLow
)

func (t Type) String() string {
	switch t {
	case SuitOxyLow:
		return "suit-oxy-low"
	case SuitOxyHigh:
		return "suit-oxy-high"
	case FanHigh:
		return "fan-high"
	case FanLow:
		return "fan-low"
	default:
		return "none"
	}
}

// drawable enumerates the four fault classes the scheduler draws from;
// None is never drawn.
var drawable = [...]Type{SuitOxyLow, SuitOxyHigh, FanHigh, FanLow}

// Action is what applying a fault does to the field table: reclassify one
// field's algorithm, reset its phase clock, and force it active. Every
// fault targets a field on eva1 — the task board only applies to the
// first crew member.
type Action struct {
	ComponentName string
	FieldName     string
	Algorithm     registry.Algorithm
}

// actionFor maps a fault type to the field/algorithm it reclassifies.
func actionFor(t Type) Action {
	switch t {
	case SuitOxyLow:
		return Action{ComponentName: "eva1", FieldName: "suit_pressure_oxy", Algorithm: registry.AlgoRapidRampDown}
	case SuitOxyHigh:
		return Action{ComponentName: "eva1", FieldName: "suit_pressure_oxy", Algorithm: registry.AlgoRapidRampUp}
	case FanHigh:
		return Action{ComponentName: "eva1", FieldName: "fan_pri_rpm", Algorithm: registry.AlgoRapidRampUp}
	case FanLow:
		return Action{ComponentName: "eva1", FieldName: "fan_pri_rpm", Algorithm: registry.AlgoRapidRampDown}
	default:
		return Action{}
	}
}

// Scheduler owns the draw for a single component's fault schedule (eva1,
// in practice — the only component the task board applies to).
type Scheduler struct {
	rng                *rand.Rand
	ErrorTime          float64
	ErrorType          Type
	NumTaskBoardErrors int
}

// NewScheduler constructs a scheduler and draws its first schedule. seed
// drives the pseudo-random draw; callers that want statistically distinct
// schedules across resets should seed from a changing source (wall clock,
// a counter) rather than a fixed constant.
func NewScheduler(seed int64) *Scheduler {
	s := &Scheduler{rng: rand.New(rand.NewSource(seed))}
	s.draw()
	return s
}

// draw samples error_time uniformly from the whole seconds 1 through 10
// (so ShouldFire's exact comparison can match a whole-second tick) and
// error_type uniformly from the four-member fault set.
func (s *Scheduler) draw() {
	s.ErrorTime = float64(1 + s.rng.Intn(10))
	s.ErrorType = drawable[s.rng.Intn(len(drawable))]
	s.NumTaskBoardErrors = 0
}

// Reset clears the fired count and draws a fresh schedule; ErrorType is
// replaced by the new draw rather than left at None.
func (s *Scheduler) Reset() {
	s.draw()
}

// ShouldFire reports whether the fault should be injected this tick: no
// fault has fired yet this run, and the component's simulation_time has
// just reached time_to_complete_task_board + error_time.
func (s *Scheduler) ShouldFire(simulationTime, taskBoardCompletionTime float64) bool {
	return s.NumTaskBoardErrors == 0 && simulationTime == taskBoardCompletionTime+s.ErrorTime
}

// Fire marks the fault as fired (preventing re-trigger this run) and
// returns the action to apply.
func (s *Scheduler) Fire() Action {
	s.NumTaskBoardErrors++
	return actionFor(s.ErrorType)
}
