package voicebot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liuscraft/orion-therapy/internal/dialogue"
)

func TestEventBus(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
		event     Event
	}{
		{"Outcome", EventTypeOutcome, NewOutcomeEvent("s", 1, "", dialogue.Misunderstood(), dialogue.DispatchOutcome{})},
		{"StateChanged", EventTypeStateChanged, NewStateChangedEvent("s", dialogue.StateCalibration, dialogue.StateReadyToStart)},
		{"SessionReset", EventTypeSessionReset, NewSessionResetEvent("s", true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eb := NewEventBus()
			var received []Event
			eb.Subscribe(tt.eventType, func(event Event) {
				received = append(received, event)
			})
			eb.Subscribe(tt.eventType+1, func(Event) {
				t.Error("handler for another event type was called")
			})

			eb.Publish(tt.event)

			if assert.Len(t, received, 1) {
				assert.Equal(t, tt.eventType, received[0].Type())
				assert.False(t, received[0].Timestamp().IsZero())
			}
		})
	}
}

func TestEventBusDeliversInSubscriptionOrder(t *testing.T) {
	eb := NewEventBus()
	var order []int
	for i := 1; i <= 3; i++ {
		eb.Subscribe(EventTypeOutcome, func(Event) { order = append(order, i) })
	}

	eb.Publish(NewOutcomeEvent("s", 1, "", dialogue.Misunderstood(), dialogue.DispatchOutcome{}))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := NewEventBus()
	var a, b int
	idA := eb.Subscribe(EventTypeSessionReset, func(Event) { a++ })
	idB := eb.Subscribe(EventTypeSessionReset, func(Event) { b++ })
	assert.NotEqual(t, idA, idB)

	eb.Publish(NewSessionResetEvent("s", false))
	eb.Unsubscribe(idA)
	eb.Unsubscribe(idA)
	eb.Unsubscribe(SubscriptionID(999))
	eb.Publish(NewSessionResetEvent("s", false))

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "outcome", EventTypeOutcome.String())
	assert.Equal(t, "state_changed", EventTypeStateChanged.String())
	assert.Equal(t, "session_reset", EventTypeSessionReset.String())
	assert.Equal(t, "unknown", EventType(42).String())
}
