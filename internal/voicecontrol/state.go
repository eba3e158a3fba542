package voicecontrol

import "slices"

// State 表示 measure 的生命周期状态
type State int

const (
	StateUninitialized State = iota
	StateChildLinked
	StateParentActive
	// StateUnlinked is a child whose parent could not be resolved. It produces no signal.
	StateUnlinked
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateChildLinked:
		return "ChildLinked"
	case StateParentActive:
		return "ParentActive"
	case StateUnlinked:
		return "Unlinked"
	case StateReleased:
		return "Released"
	default:
		return "Unknown"
	}
}

var validTransitions = map[State][]State{
	StateUninitialized: {StateChildLinked, StateParentActive, StateUnlinked, StateReleased},
	StateChildLinked:   {StateReleased},
	StateParentActive:  {StateReleased},
	StateUnlinked:      {StateReleased},
}

// StateMachine 状态机
type StateMachine struct {
	currentState State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		currentState: StateUninitialized,
	}
}

// CanTransition 检查是否可以转换
func (sm *StateMachine) CanTransition(to State) bool {
	validTo, ok := validTransitions[sm.currentState]
	if !ok {
		return false
	}
	return slices.Contains(validTo, to)
}

// Transition 状态转换
func (sm *StateMachine) Transition(to State) bool {
	if sm.CanTransition(to) {
		sm.currentState = to
		return true
	}
	return false
}

// GetCurrentState 获取当前状态
func (sm *StateMachine) GetCurrentState() State {
	return sm.currentState
}
