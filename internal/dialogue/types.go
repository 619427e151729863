package dialogue

// 意图名称
const (
	IntentTherapyStart       = "therapy_start"
	IntentTherapyEnd         = "therapy_end"
	IntentTherapyPause       = "therapy_pause"
	IntentTherapyResume      = "therapy_resume"
	IntentTherapyNext        = "therapy_next"
	IntentTherapyPrevious    = "therapy_previous"
	IntentTherapyRepeat      = "therapy_repeat"
	IntentCalibrationStart   = "calibration_start"
	IntentCalibrationConfirm = "calibration_confirm"
	IntentHelpRequest        = "help_request"
	IntentFeedbackPositive   = "feedback_positive"
	IntentFeedbackNegative   = "feedback_negative"
	IntentEmergencyStop      = "emergency_stop"
	IntentConfirmationYes    = "confirmation_yes"
	IntentConfirmationNo     = "confirmation_no"
)

// 实体与特征名称
const (
	SlotAssistanceType = "Assistance_Type"
	SlotSentiment      = "Sentiment"
	SlotBodyPart       = "Body_Part"
	SlotPainLevel      = "Pain_Level"
)

// RecognitionResult 外部识别器的输出
type RecognitionResult struct {
	IntentName string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities,omitempty"`
	Traits     map[string]string `json:"traits,omitempty"`
}

// Misunderstood 无语音或识别失败时使用的合成结果
func Misunderstood() RecognitionResult {
	return RecognitionResult{}
}

// slot 先查实体再查特征
func (r RecognitionResult) slot(name string) string {
	if v, ok := r.Entities[name]; ok && v != "" {
		return v
	}
	return r.Traits[name]
}

// Band 置信度区间
type Band int

const (
	BandEscalation Band = iota
	BandGuidance
	BandConfirmation
	BandDirect
)

func (b Band) String() string {
	switch b {
	case BandEscalation:
		return "Escalation"
	case BandGuidance:
		return "LowConfidenceGuidance"
	case BandConfirmation:
		return "ConfirmationRequest"
	case BandDirect:
		return "DirectDispatch"
	default:
		return "Unknown"
	}
}

// FeedbackTone 反馈语气
type FeedbackTone int

const (
	ToneNeutral FeedbackTone = iota
	ToneSuccess
	ToneError
)

func (t FeedbackTone) String() string {
	switch t {
	case ToneNeutral:
		return "Neutral"
	case ToneSuccess:
		return "Success"
	case ToneError:
		return "Error"
	default:
		return "Unknown"
	}
}

// DispatchOutcome 一次识别的处理结果，由调用方渲染
type DispatchOutcome struct {
	Message            string
	Tone               FeedbackTone
	NewState           SessionState
	SessionShouldReset bool

	Intent                 string
	Band                   Band
	PreviousState          SessionState
	Escalated              bool
	ExerciseIndex          int
	CalibrationPhraseIndex int
}

// StateChanged 本次处理是否改变了会话状态
func (o DispatchOutcome) StateChanged() bool {
	return o.NewState != o.PreviousState
}

// Snapshot 状态机只读快照
type Snapshot struct {
	State                  SessionState
	CalibrationPhraseIndex int
	ExerciseIndex          int
	ConsecutiveErrors      int
	PendingIntent          string
	HasPending             bool
	Calibrated             bool
	ExerciseStarted        bool
	Paused                 bool
}
