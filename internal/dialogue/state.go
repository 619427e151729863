package dialogue

import "slices"

// SessionState 会话状态
type SessionState int

const (
	StateCalibration SessionState = iota
	StateReadyToStart
	StateExerciseInProgress
	StateErrorHandling
	StateEndSession
)

func (s SessionState) String() string {
	switch s {
	case StateCalibration:
		return "Calibration"
	case StateReadyToStart:
		return "ReadyToStart"
	case StateExerciseInProgress:
		return "ExerciseInProgress"
	case StateErrorHandling:
		return "ErrorHandling"
	case StateEndSession:
		return "EndSession"
	default:
		return "Unknown"
	}
}

// validTransitions 状态转换表。ErrorHandling 与 Calibration 可从任意状态强制进入。
var validTransitions = map[SessionState][]SessionState{
	StateCalibration:        {StateCalibration, StateReadyToStart, StateExerciseInProgress, StateErrorHandling},
	StateReadyToStart:       {StateCalibration, StateExerciseInProgress, StateErrorHandling},
	StateExerciseInProgress: {StateCalibration, StateEndSession, StateErrorHandling},
	StateErrorHandling:      {StateCalibration, StateErrorHandling},
	StateEndSession:         {StateCalibration, StateErrorHandling},
}

// canTransition 检查是否可以转换
func canTransition(from, to SessionState) bool {
	validTo, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(validTo, to)
}
