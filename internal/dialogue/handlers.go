package dialogue

import "strings"

// intentHandler 意图处理函数；applied 为 false 表示当前状态不允许该意图，未做任何修改
type intentHandler func(r RecognitionResult) (out DispatchOutcome, applied bool)

func (m *Machine) defaultHandlers() map[string]intentHandler {
	return map[string]intentHandler{
		IntentTherapyStart:       m.handleTherapyStart,
		IntentTherapyEnd:         m.handleTherapyEnd,
		IntentTherapyPause:       m.handleTherapyPause,
		IntentTherapyResume:      m.handleTherapyResume,
		IntentTherapyNext:        m.handleTherapyNext,
		IntentTherapyPrevious:    m.handleTherapyPrevious,
		IntentTherapyRepeat:      m.handleTherapyRepeat,
		IntentCalibrationStart:   m.handleCalibrationStart,
		IntentCalibrationConfirm: m.handleCalibrationConfirm,
		IntentHelpRequest:        m.handleHelpRequest,
		IntentFeedbackPositive:   m.handleFeedbackPositive,
		IntentFeedbackNegative:   m.handleFeedbackNegative,
		IntentEmergencyStop:      m.handleEmergencyStop,
	}
}

// notApplicable 当前状态不允许该意图，附带当前状态的帮助文本
func (m *Machine) notApplicable(msg string) (DispatchOutcome, bool) {
	return DispatchOutcome{Message: msg + " " + m.helpText(m.state), Tone: ToneNeutral}, false
}

func (m *Machine) handleTherapyStart(RecognitionResult) (DispatchOutcome, bool) {
	switch m.state {
	case StateReadyToStart, StateCalibration:
	case StateExerciseInProgress:
		return m.notApplicable(msgAlreadyStarted)
	default:
		return m.notApplicable(msgCannotStart)
	}

	if !m.exerciseStarted {
		m.exerciseIdx = 0
		m.exerciseStarted = true
	}
	m.paused = false
	m.transition(StateExerciseInProgress)
	return DispatchOutcome{Message: msgStartPrefix + m.exerciseMessage(m.exerciseIdx), Tone: ToneSuccess}, true
}

func (m *Machine) handleTherapyEnd(RecognitionResult) (DispatchOutcome, bool) {
	if m.state != StateExerciseInProgress {
		return m.notApplicable(msgNoActiveSession)
	}
	m.paused = false
	m.transition(StateEndSession)
	return DispatchOutcome{Message: msgEndSession, Tone: ToneSuccess}, true
}

func (m *Machine) handleTherapyPause(RecognitionResult) (DispatchOutcome, bool) {
	if m.state != StateExerciseInProgress {
		return m.notApplicable(msgNotInSession)
	}
	if m.paused {
		return DispatchOutcome{Message: msgAlreadyPaused, Tone: ToneNeutral}, true
	}
	m.paused = true
	return DispatchOutcome{Message: msgPaused, Tone: ToneSuccess}, true
}

func (m *Machine) handleTherapyResume(RecognitionResult) (DispatchOutcome, bool) {
	if m.state != StateExerciseInProgress {
		return m.notApplicable(msgNotInSession)
	}
	if !m.paused {
		return DispatchOutcome{Message: msgNotPaused + " " + m.exerciseMessage(m.exerciseIdx), Tone: ToneNeutral}, true
	}
	m.paused = false
	return DispatchOutcome{Message: msgResumed + m.exerciseMessage(m.exerciseIdx), Tone: ToneSuccess}, true
}

func (m *Machine) handleTherapyNext(RecognitionResult) (DispatchOutcome, bool) {
	if m.state != StateExerciseInProgress {
		return m.notApplicable(msgNotInSession)
	}
	if m.exerciseIdx >= m.cfg.TotalExercises-1 {
		m.exerciseIdx = m.cfg.TotalExercises - 1
		return DispatchOutcome{Message: msgAllComplete, Tone: ToneSuccess}, true
	}
	m.exerciseIdx++
	return DispatchOutcome{Message: m.exerciseMessage(m.exerciseIdx), Tone: ToneSuccess}, true
}

func (m *Machine) handleTherapyPrevious(RecognitionResult) (DispatchOutcome, bool) {
	if m.state != StateExerciseInProgress {
		return m.notApplicable(msgNotInSession)
	}
	if m.exerciseIdx <= 0 {
		return m.notApplicable(msgFirstExercise + " " + m.exerciseMessage(0))
	}
	m.exerciseIdx--
	return DispatchOutcome{Message: m.exerciseMessage(m.exerciseIdx), Tone: ToneSuccess}, true
}

func (m *Machine) handleTherapyRepeat(RecognitionResult) (DispatchOutcome, bool) {
	switch m.state {
	case StateExerciseInProgress:
		return DispatchOutcome{Message: m.exerciseMessage(m.exerciseIdx), Tone: ToneNeutral}, true
	case StateCalibration:
		return DispatchOutcome{Message: m.helpText(StateCalibration), Tone: ToneNeutral}, true
	default:
		return m.notApplicable(msgNothingToRepeat)
	}
}

func (m *Machine) handleCalibrationStart(RecognitionResult) (DispatchOutcome, bool) {
	m.transition(StateCalibration)
	m.calibrationIdx = 0
	m.calibrated = false
	m.paused = false
	return DispatchOutcome{
		Message: renderTemplate(msgCalibrationStart, map[string]string{"phrase": m.cfg.calibrationPhrase(0)}),
		Tone:    ToneSuccess,
	}, true
}

func (m *Machine) handleCalibrationConfirm(r RecognitionResult) (DispatchOutcome, bool) {
	if m.state != StateCalibration {
		return m.notApplicable(msgNotCalibrating)
	}
	return m.handleCalibrationResponse(r)
}

// handleCalibrationResponse 校准阶段的短语推进；Calibration 状态下未知意图也走这里
func (m *Machine) handleCalibrationResponse(RecognitionResult) (DispatchOutcome, bool) {
	if m.state != StateCalibration {
		return m.notApplicable(msgNotCalibrating)
	}
	if m.calibrationIdx < m.cfg.TotalCalibrationPhrases {
		m.calibrationIdx++
	}
	if m.calibrationIdx >= m.cfg.TotalCalibrationPhrases {
		m.calibrated = true
		m.transition(StateReadyToStart)
		return DispatchOutcome{Message: msgCalibrationDone, Tone: ToneSuccess}, true
	}
	return DispatchOutcome{
		Message: renderTemplate(msgCalibrationNext, map[string]string{"phrase": m.cfg.calibrationPhrase(m.calibrationIdx)}),
		Tone:    ToneSuccess,
	}, true
}

func (m *Machine) handleHelpRequest(r RecognitionResult) (DispatchOutcome, bool) {
	kind := strings.ToLower(strings.TrimSpace(r.slot(SlotAssistanceType)))
	if tmpl, ok := assistanceMessages[kind]; ok {
		return DispatchOutcome{
			Message: renderTemplate(tmpl, map[string]string{"exercise": m.cfg.exerciseText(m.exerciseIdx)}),
			Tone:    ToneNeutral,
		}, true
	}
	return DispatchOutcome{Message: m.helpText(m.state), Tone: ToneNeutral}, true
}

func (m *Machine) handleFeedbackPositive(r RecognitionResult) (DispatchOutcome, bool) {
	vars := feedbackVars(r)
	switch {
	case strings.EqualFold(r.slot(SlotSentiment), "negative"):
		return DispatchOutcome{Message: feedbackMessages["negative_sentiment"], Tone: ToneNeutral}, true
	case r.slot(SlotBodyPart) != "":
		return DispatchOutcome{Message: renderTemplate(feedbackMessages["positive_part"], vars), Tone: ToneSuccess}, true
	default:
		return DispatchOutcome{Message: feedbackMessages["positive"], Tone: ToneSuccess}, true
	}
}

func (m *Machine) handleFeedbackNegative(r RecognitionResult) (DispatchOutcome, bool) {
	vars := feedbackVars(r)
	switch {
	case severePain(r.slot(SlotPainLevel)):
		return DispatchOutcome{Message: renderTemplate(feedbackMessages["negative_severe"], vars), Tone: ToneError}, true
	case r.slot(SlotBodyPart) != "":
		return DispatchOutcome{Message: renderTemplate(feedbackMessages["negative_part"], vars), Tone: ToneNeutral}, true
	default:
		return DispatchOutcome{Message: feedbackMessages["negative"], Tone: ToneNeutral}, true
	}
}

func feedbackVars(r RecognitionResult) map[string]string {
	part := strings.ToLower(strings.TrimSpace(r.slot(SlotBodyPart)))
	if part == "" {
		part = "body"
	}
	return map[string]string{
		"body_part":  part,
		"pain_level": strings.TrimSpace(r.slot(SlotPainLevel)),
	}
}

// handleEmergencyStop 立即要求确认用户安全；重置由调用方在延时后执行
func (m *Machine) handleEmergencyStop(RecognitionResult) (DispatchOutcome, bool) {
	m.paused = false
	return DispatchOutcome{Message: msgEmergencyStop, Tone: ToneError, SessionShouldReset: true}, true
}
