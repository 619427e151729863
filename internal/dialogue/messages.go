package dialogue

import (
	"strconv"
	"strings"
)

const (
	msgMisunderstood      = "Sorry, I didn't understand that. Could you say it again?"
	msgEscalationPrefix   = "I'm having trouble understanding you. "
	msgConfirmQuestion    = "Did you mean to {{action}}?"
	msgConfirmDeclined    = "Okay, what would you like to do instead?"
	msgNothingToConfirm   = "There's nothing to confirm right now. " // 后接当前状态帮助
	msgEmergencyStop      = "Stopping now. Are you okay? If you feel unwell, stay still and contact your therapist or emergency services."
	msgSessionRestart     = "Great, let's set up a new session."
	msgSessionGoodbye     = "Thank you for your session today. Goodbye!"
	msgAlreadyStarted     = "The session is already running."
	msgNoActiveSession    = "There is no active session to end."
	msgNotInSession       = "That only works during an exercise session."
	msgFirstExercise      = "You're already on the first exercise."
	msgAllComplete        = "You've completed all the exercises! Say 'end session' when you're done."
	msgNothingToRepeat    = "There's nothing to repeat right now."
	msgNotCalibrating     = "Calibration isn't running. Say 'calibrate' to start it."
	msgPaused             = "Session paused. Say 'resume' when you're ready."
	msgAlreadyPaused      = "The session is already paused. Say 'resume' when you're ready."
	msgNotPaused          = "The session isn't paused."
	msgResumed            = "Welcome back. "
	msgStartPrefix        = "Let's begin. "
	msgCalibrationStart   = "Let's calibrate your voice. Please say: \"{{phrase}}\""
	msgCalibrationNext    = "Got it. Now please say: \"{{phrase}}\""
	msgCalibrationDone    = "Calibration complete! Say 'start session' when you're ready to begin."
	msgEndSession         = "Great work today! Would you like to start another session?"
	msgExercise           = "Exercise {{number}} of {{total}}: {{text}}"
	msgStartFromErrorHelp = "Say 'calibrate' to start over."
	msgCannotStart        = "Exercises can't be started right now."
)

var guidanceMessages = map[string]string{
	IntentTherapyNext:  "Did you want the next exercise? Please say 'next exercise' clearly.",
	IntentTherapyEnd:   "If you want to finish, please say 'end session' clearly.",
	IntentTherapyStart: "To begin your exercises, please say 'start session' clearly.",
}

var assistanceMessages = map[string]string{
	"instructions":   "Here's how to do it: {{exercise}} Move slowly and breathe normally.",
	"modification":   "Try a smaller range of motion, or do the movement while seated. Stop if anything hurts.",
	"simplification": "Let's make it easier: do just half the movement, and take a rest between each repetition.",
}

var feedbackMessages = map[string]string{
	"positive":           "Great to hear! Keep up the good work.",
	"positive_part":      "Glad your {{body_part}} is feeling good! Keep it up.",
	"negative":           "Sorry to hear that. Try slowing down, and say 'help' if you need a modification.",
	"negative_part":      "Sorry your {{body_part}} is bothering you. Try a smaller movement, and say 'help' if you need a modification.",
	"negative_severe":    "A pain level of {{pain_level}} is too high. Please stop this exercise and rest your {{body_part}}.",
	"negative_sentiment": "Thanks for telling me how you feel. Let's take it slowly.",
}

// renderTemplate 替换 {{key}} 占位符
func renderTemplate(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// helpText 返回指定状态下的帮助文本，保证用户总有下一步指引
func (m *Machine) helpText(state SessionState) string {
	switch state {
	case StateCalibration:
		return renderTemplate("We're calibrating your voice. Please say: \"{{phrase}}\"", map[string]string{
			"phrase": m.cfg.calibrationPhrase(min(m.calibrationIdx, m.cfg.TotalCalibrationPhrases-1)),
		})
	case StateReadyToStart:
		return "Say 'start session' when you're ready to begin your exercises."
	case StateExerciseInProgress:
		return "You can say 'next exercise', 'previous exercise', 'repeat', 'pause', or 'end session'."
	case StateErrorHandling:
		return "Say 'calibrate' to start over, or 'help' followed by what you need."
	case StateEndSession:
		return "Your session has ended. Say 'yes' to start a new one, or 'no' to finish."
	default:
		return msgStartFromErrorHelp
	}
}

func (m *Machine) exerciseMessage(index int) string {
	return renderTemplate(msgExercise, map[string]string{
		"number": strconv.Itoa(index + 1),
		"total":  strconv.Itoa(m.cfg.TotalExercises),
		"text":   m.cfg.exerciseText(index),
	})
}

// severePain 疼痛等级 7 以上或描述为 high/severe
func severePain(level string) bool {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "":
		return false
	case "high", "severe", "extreme", "unbearable":
		return true
	}
	n, err := strconv.ParseFloat(level, 64)
	if err != nil {
		return false
	}
	return n >= 7
}
