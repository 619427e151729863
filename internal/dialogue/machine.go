package dialogue

import "strings"

// escalationLimit 连续误识别达到该次数后强制进入 ErrorHandling
const escalationLimit = 3

// Machine 对话状态机。持有会话状态、待确认意图、连续错误计数与进度游标。
// 不做 I/O，不持有定时器；同一时刻只允许一个调用，不可并发使用。
type Machine struct {
	cfg      Config
	handlers map[string]intentHandler

	state             SessionState
	pendingIntent     string
	pendingResult     RecognitionResult // 待确认意图的原始识别结果，确认时带上槽位
	hasPending        bool
	consecutiveErrors int
	calibrationIdx    int
	exerciseIdx       int
	calibrated        bool
	exerciseStarted   bool
	paused            bool
}

// New 创建状态机，初始状态为 Calibration
func New(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Machine{
		cfg:   cfg,
		state: StateCalibration,
	}
	m.handlers = m.defaultHandlers()
	return m, nil
}

// State 获取当前状态
func (m *Machine) State() SessionState {
	return m.state
}

// Config 返回构造时的配置
func (m *Machine) Config() Config {
	return m.cfg
}

// Snapshot 获取只读快照
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		State:                  m.state,
		CalibrationPhraseIndex: m.calibrationIdx,
		ExerciseIndex:          m.exerciseIdx,
		ConsecutiveErrors:      m.consecutiveErrors,
		PendingIntent:          m.pendingIntent,
		HasPending:             m.hasPending,
		Calibrated:             m.calibrated,
		ExerciseStarted:        m.exerciseStarted,
		Paused:                 m.paused,
	}
}

// ResetSession 清空游标、待确认意图与错误计数，强制回到 Calibration
func (m *Machine) ResetSession() {
	m.transition(StateCalibration)
	m.clearPending()
	m.consecutiveErrors = 0
	m.calibrationIdx = 0
	m.exerciseIdx = 0
	m.calibrated = false
	m.exerciseStarted = false
	m.paused = false
}

// HandleRecognition 处理一次识别结果，至多产生一次状态变更
func (m *Machine) HandleRecognition(result RecognitionResult) DispatchOutcome {
	result.IntentName = strings.TrimSpace(result.IntentName)
	result.Confidence = clampConfidence(result.Confidence)
	prev := m.state

	out := m.route(result)
	out.Intent = result.IntentName
	out.PreviousState = prev
	out.NewState = m.state
	out.ExerciseIndex = m.exerciseIdx
	out.CalibrationPhraseIndex = m.calibrationIdx
	return out
}

func (m *Machine) route(r RecognitionResult) DispatchOutcome {
	// 确认类意图始终按直接分发处理，且优先于一般分发
	if r.IntentName == IntentConfirmationYes || r.IntentName == IntentConfirmationNo {
		out := m.handleConfirmation(r)
		out.Band = BandDirect
		return out
	}

	if r.IntentName == "" {
		return m.escalate()
	}

	switch band := m.cfg.Classify(r.Confidence); band {
	case BandDirect:
		return m.dispatch(r.IntentName, r)
	case BandConfirmation:
		m.pendingIntent = r.IntentName
		m.pendingResult = r
		m.hasPending = true
		return DispatchOutcome{
			Message: renderTemplate(msgConfirmQuestion, map[string]string{"action": m.cfg.friendlyName(r.IntentName)}),
			Tone:    ToneNeutral,
			Band:    band,
		}
	case BandGuidance:
		msg, ok := guidanceMessages[r.IntentName]
		if !ok {
			msg = msgMisunderstood
		}
		return DispatchOutcome{Message: msg, Tone: ToneNeutral, Band: band}
	default:
		return m.escalate()
	}
}

func (m *Machine) handleConfirmation(r RecognitionResult) DispatchOutcome {
	if m.hasPending {
		pending := m.pendingResult
		pending.IntentName = m.pendingIntent
		pending.Confidence = 1
		m.clearPending()
		if r.IntentName == IntentConfirmationNo {
			m.consecutiveErrors = 0
			return DispatchOutcome{Message: msgConfirmDeclined, Tone: ToneNeutral}
		}
		out, applied := m.dispatchConfirmed(pending)
		// 待确认意图在当前状态已不适用时按无待确认处理；校准中的回答不计作校准短语
		if applied || m.state == StateCalibration {
			return out
		}
	}

	switch m.state {
	case StateEndSession:
		m.consecutiveErrors = 0
		msg := msgSessionGoodbye
		if r.IntentName == IntentConfirmationYes {
			msg = msgSessionRestart
		}
		return DispatchOutcome{Message: msg, Tone: ToneSuccess, SessionShouldReset: true}
	case StateCalibration:
		return m.dispatch(r.IntentName, r)
	default:
		return DispatchOutcome{Message: msgNothingToConfirm + m.helpText(m.state), Tone: ToneNeutral}
	}
}

// dispatch 直接分发到意图处理器；成功时清零连续错误计数
func (m *Machine) dispatch(intent string, r RecognitionResult) DispatchOutcome {
	handler, ok := m.handlers[intent]
	if !ok {
		if m.state != StateCalibration {
			return m.escalate()
		}
		handler = m.handleCalibrationResponse
	}

	out, applied := handler(r)
	if applied {
		m.consecutiveErrors = 0
	}
	out.Band = BandDirect
	return out
}

// dispatchConfirmed 执行用户确认过的意图；applied 为 false 时状态未变
func (m *Machine) dispatchConfirmed(r RecognitionResult) (DispatchOutcome, bool) {
	handler, ok := m.handlers[r.IntentName]
	if !ok {
		return m.dispatch(r.IntentName, r), true
	}
	out, applied := handler(r)
	if applied {
		m.consecutiveErrors = 0
	}
	out.Band = BandDirect
	return out, applied
}

// escalate 误识别升级：累计到上限时强制进入 ErrorHandling
func (m *Machine) escalate() DispatchOutcome {
	m.consecutiveErrors++
	if m.consecutiveErrors < escalationLimit {
		return DispatchOutcome{Message: msgMisunderstood, Tone: ToneError, Band: BandEscalation}
	}

	help := m.helpText(m.state)
	m.transition(StateErrorHandling)
	m.consecutiveErrors = 0
	return DispatchOutcome{
		Message:   msgEscalationPrefix + help,
		Tone:      ToneError,
		Band:      BandEscalation,
		Escalated: true,
	}
}

// transition 按转换表切换状态
func (m *Machine) transition(to SessionState) bool {
	if !canTransition(m.state, to) {
		return false
	}
	m.state = to
	return true
}

func (m *Machine) clearPending() {
	m.pendingIntent = ""
	m.pendingResult = RecognitionResult{}
	m.hasPending = false
}
