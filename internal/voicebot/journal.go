package voicebot

import (
	"context"
	"time"

	"github.com/liuscraft/orion-therapy/internal/logging"
	"github.com/liuscraft/orion-therapy/internal/store"
)

const journalWriteTimeout = 5 * time.Second

// TurnRecorder 轮次持久化
type TurnRecorder interface {
	RecordTurn(ctx context.Context, turn store.Turn) error
}

// AttachJournal 将总线上的每个 OutcomeEvent 写入 recorder，返回的 ID 可用于解除
func AttachJournal(bus EventBus, recorder TurnRecorder) SubscriptionID {
	return bus.Subscribe(EventTypeOutcome, func(event Event) {
		e, ok := event.(*OutcomeEvent)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		defer cancel()
		if err := recorder.RecordTurn(ctx, TurnFromEvent(e)); err != nil {
			logging.Errorf("session %s: record turn %d: %v", e.SessionID, e.Turn, err)
		}
	})
}

// TurnFromEvent 将事件转换为日志行
func TurnFromEvent(e *OutcomeEvent) store.Turn {
	return store.Turn{
		SessionID:  e.SessionID,
		Seq:        e.Turn,
		Utterance:  e.Utterance,
		Intent:     e.Outcome.Intent,
		Confidence: e.Result.Confidence,
		Band:       e.Outcome.Band.String(),
		Message:    e.Outcome.Message,
		Tone:       e.Outcome.Tone.String(),
		FromState:  e.Outcome.PreviousState.String(),
		ToState:    e.Outcome.NewState.String(),
		Escalated:  e.Outcome.Escalated,
		CreatedAt:  e.Timestamp(),
	}
}
