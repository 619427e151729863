package voicebot

import (
	"time"

	"github.com/liuscraft/orion-therapy/internal/dialogue"
)

// Event 事件接口
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// EventType 事件类型
type EventType int

const (
	EventTypeOutcome EventType = iota
	EventTypeStateChanged
	EventTypeSessionReset
)

func (t EventType) String() string {
	switch t {
	case EventTypeOutcome:
		return "outcome"
	case EventTypeStateChanged:
		return "state_changed"
	case EventTypeSessionReset:
		return "session_reset"
	default:
		return "unknown"
	}
}

// BaseEvent 事件公共字段
type BaseEvent struct {
	eventType EventType
	timestamp time.Time
	SessionID string
}

func (e *BaseEvent) Type() EventType {
	return e.eventType
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

func newBaseEvent(eventType EventType, sessionID string) BaseEvent {
	return BaseEvent{eventType: eventType, timestamp: time.Now(), SessionID: sessionID}
}

// OutcomeEvent 一轮识别处理完成
type OutcomeEvent struct {
	BaseEvent
	Turn      uint64
	Utterance string
	Result    dialogue.RecognitionResult
	Outcome   dialogue.DispatchOutcome
}

func NewOutcomeEvent(sessionID string, turn uint64, utterance string, result dialogue.RecognitionResult, outcome dialogue.DispatchOutcome) *OutcomeEvent {
	return &OutcomeEvent{
		BaseEvent: newBaseEvent(EventTypeOutcome, sessionID),
		Turn:      turn,
		Utterance: utterance,
		Result:    result,
		Outcome:   outcome,
	}
}

// StateChangedEvent 会话状态变化事件
type StateChangedEvent struct {
	BaseEvent
	OldState dialogue.SessionState
	NewState dialogue.SessionState
}

func NewStateChangedEvent(sessionID string, oldState, newState dialogue.SessionState) *StateChangedEvent {
	return &StateChangedEvent{
		BaseEvent: newBaseEvent(EventTypeStateChanged, sessionID),
		OldState:  oldState,
		NewState:  newState,
	}
}

// SessionResetEvent 会话已重置回 Calibration
type SessionResetEvent struct {
	BaseEvent
	// Scheduled 为 true 表示由延时重置触发，否则为显式 Reset
	Scheduled bool
}

func NewSessionResetEvent(sessionID string, scheduled bool) *SessionResetEvent {
	return &SessionResetEvent{
		BaseEvent: newBaseEvent(EventTypeSessionReset, sessionID),
		Scheduled: scheduled,
	}
}
