package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuscraft/orion-therapy/internal/dialogue"
)

func TestWebsocketUtteranceFlow(t *testing.T) {
	_, ts := newTestServer(t, nil, Options{})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(clientFrame{Type: frameUtterance, Text: "start the session"}))
	frame := readFrame(t, conn)
	require.Equal(t, frameOutcome, frame.Type)
	require.NotNil(t, frame.Outcome)
	assert.NotEmpty(t, frame.SessionID)
	assert.Equal(t, uint64(1), frame.Turn)
	assert.Equal(t, "ExerciseInProgress", frame.Outcome.State)
	assert.Equal(t, "Calibration", frame.Outcome.PreviousState)
	assert.Equal(t, "Success", frame.Outcome.Tone)
	assert.Equal(t, dialogue.IntentTherapyStart, frame.Outcome.Intent)

	require.NoError(t, conn.WriteJSON(clientFrame{Type: frameRecognize, Intent: dialogue.IntentTherapyNext, Confidence: 0.95}))
	frame = readFrame(t, conn)
	require.Equal(t, frameOutcome, frame.Type)
	assert.Equal(t, 1, frame.Outcome.ExerciseIndex)
	assert.Equal(t, "DirectDispatch", frame.Outcome.Band)
}

func TestWebsocketErrors(t *testing.T) {
	_, ts := newTestServer(t, nil, Options{})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame := readFrame(t, conn)
	assert.Equal(t, frameError, frame.Type)
	assert.Contains(t, frame.Error, "invalid frame")

	require.NoError(t, conn.WriteJSON(clientFrame{Type: "dance"}))
	frame = readFrame(t, conn)
	assert.Equal(t, frameError, frame.Type)
	assert.Contains(t, frame.Error, `unknown frame type "dance"`)
}

func TestWebsocketNoSpeechAndReset(t *testing.T) {
	_, ts := newTestServer(t, nil, Options{})
	conn := dial(t, ts)

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteJSON(clientFrame{Type: frameNoSpeech}))
		frame := readFrame(t, conn)
		require.Equal(t, frameOutcome, frame.Type)
		assert.Equal(t, "Escalation", frame.Outcome.Band)
		assert.Equal(t, i == 2, frame.Outcome.Escalated)
	}

	require.NoError(t, conn.WriteJSON(clientFrame{Type: frameReset}))
	frame := readFrame(t, conn)
	assert.Equal(t, frameReset, frame.Type)
	assert.Equal(t, "Calibration", frame.State)
}

func TestWebsocketScheduledResetAfterEmergency(t *testing.T) {
	_, ts := newTestServer(t, nil, Options{ResetDelay: 20 * time.Millisecond})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(clientFrame{Type: frameUtterance, Text: "emergency, stop now"}))
	frame := readFrame(t, conn)
	require.Equal(t, frameOutcome, frame.Type)
	assert.True(t, frame.Outcome.SessionShouldReset)
	assert.Equal(t, "Error", frame.Outcome.Tone)

	frame = readFrame(t, conn)
	assert.Equal(t, frameReset, frame.Type)
}

func TestWebsocketSilenceInjectsNoSpeech(t *testing.T) {
	_, ts := newTestServer(t, nil, Options{NoSpeechTimeout: 30 * time.Millisecond})
	conn := dial(t, ts)

	frame := readFrame(t, conn)
	require.Equal(t, frameOutcome, frame.Type)
	assert.Equal(t, "Escalation", frame.Outcome.Band)
	assert.Empty(t, frame.Outcome.Intent)
}

func TestWebsocketJournal(t *testing.T) {
	repo := newTestStore(t)
	_, ts := newTestServer(t, repo, Options{})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(clientFrame{Type: frameUtterance, Text: "start"}))
	first := readFrame(t, conn)
	require.NoError(t, conn.WriteJSON(clientFrame{Type: frameUtterance, Text: "next please"}))
	readFrame(t, conn)

	resp, err := http.Get(ts.URL + "/sessions/" + first.SessionID + "/turns")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		SessionID string `json:"session_id"`
		Turns     []struct {
			Seq       uint64 `json:"seq"`
			Utterance string `json:"utterance"`
			Intent    string `json:"intent"`
			ToState   string `json:"to_state"`
		} `json:"turns"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, first.SessionID, body.SessionID)
	require.Len(t, body.Turns, 2)
	assert.Equal(t, "start", body.Turns[0].Utterance)
	assert.Equal(t, "ExerciseInProgress", body.Turns[0].ToState)
	assert.Equal(t, dialogue.IntentTherapyNext, body.Turns[1].Intent)
	assert.Equal(t, uint64(2), body.Turns[1].Seq)
}

func TestCloseSessionsDisconnectsClients(t *testing.T) {
	srv, ts := newTestServer(t, nil, Options{})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(clientFrame{Type: frameNoSpeech}))
	readFrame(t, conn)

	srv.CloseSessions()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}
