package dialogue

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     SessionState
		to       SessionState
		expected bool
	}{
		{"Calibration to ReadyToStart", StateCalibration, StateReadyToStart, true},
		{"Calibration to ExerciseInProgress", StateCalibration, StateExerciseInProgress, true},
		{"ReadyToStart to ExerciseInProgress", StateReadyToStart, StateExerciseInProgress, true},
		{"ExerciseInProgress to EndSession", StateExerciseInProgress, StateEndSession, true},
		{"EndSession to Calibration", StateEndSession, StateCalibration, true},
		{"ErrorHandling to ErrorHandling", StateErrorHandling, StateErrorHandling, true},
		{"ReadyToStart to EndSession", StateReadyToStart, StateEndSession, false},
		{"ErrorHandling to ExerciseInProgress", StateErrorHandling, StateExerciseInProgress, false},
		{"EndSession to ExerciseInProgress", StateEndSession, StateExerciseInProgress, false},
		{"Calibration to EndSession", StateCalibration, StateEndSession, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("canTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestEveryStateCanBeForcedIntoErrorHandlingAndCalibration(t *testing.T) {
	for from := range validTransitions {
		if !canTransition(from, StateErrorHandling) {
			t.Errorf("%v cannot escalate to ErrorHandling", from)
		}
		if !canTransition(from, StateCalibration) {
			t.Errorf("%v cannot reset to Calibration", from)
		}
	}
}

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state    SessionState
		expected string
	}{
		{StateCalibration, "Calibration"},
		{StateReadyToStart, "ReadyToStart"},
		{StateExerciseInProgress, "ExerciseInProgress"},
		{StateErrorHandling, "ErrorHandling"},
		{StateEndSession, "EndSession"},
		{SessionState(42), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("SessionState.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}
