package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liuscraft/orion-therapy/internal/dialogue"
	"github.com/liuscraft/orion-therapy/internal/logging"
	"github.com/liuscraft/orion-therapy/internal/voicebot"
)

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 64 << 10
	frameUtterance = "utterance"
	frameRecognize = "recognition"
	frameNoSpeech  = "no_speech"
	frameReset     = "reset"
	frameOutcome   = "outcome"
	frameError     = "error"
)

// clientFrame 客户端消息
type clientFrame struct {
	Type       string            `json:"type"`
	Text       string            `json:"text,omitempty"`
	Intent     string            `json:"intent,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Entities   map[string]string `json:"entities,omitempty"`
	Traits     map[string]string `json:"traits,omitempty"`
}

// serverFrame 服务端消息
type serverFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Turn      uint64          `json:"turn,omitempty"`
	Outcome   *outcomePayload `json:"outcome,omitempty"`
	State     string          `json:"state,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type outcomePayload struct {
	Message                string `json:"message"`
	Tone                   string `json:"tone"`
	Intent                 string `json:"intent"`
	Band                   string `json:"band"`
	PreviousState          string `json:"previous_state"`
	State                  string `json:"state"`
	SessionShouldReset     bool   `json:"session_should_reset"`
	Escalated              bool   `json:"escalated"`
	ExerciseIndex          int    `json:"exercise_index"`
	CalibrationPhraseIndex int    `json:"calibration_phrase_index"`
}

func newOutcomePayload(out dialogue.DispatchOutcome) *outcomePayload {
	return &outcomePayload{
		Message:                out.Message,
		Tone:                   out.Tone.String(),
		Intent:                 out.Intent,
		Band:                   out.Band.String(),
		PreviousState:          out.PreviousState.String(),
		State:                  out.NewState.String(),
		SessionShouldReset:     out.SessionShouldReset,
		Escalated:              out.Escalated,
		ExerciseIndex:          out.ExerciseIndex,
		CalibrationPhraseIndex: out.CalibrationPhraseIndex,
	}
}

// wsConn 一个 websocket 连接及其会话
type wsConn struct {
	conn    *websocket.Conn
	session *voicebot.Session
	log     *logging.SessionLogger

	writeMu sync.Mutex

	silenceMu    sync.Mutex
	silence      *time.Timer
	silenceAfter time.Duration
	closed       bool
	closeOnce    sync.Once
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnf("websocket upgrade failed: %v", err)
		return
	}

	session, err := voicebot.NewSession(s.dialogueCfg, s.interp, voicebot.Options{ResetDelay: s.opts.ResetDelay})
	if err != nil {
		logging.Errorf("create session: %v", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"))
		conn.Close()
		return
	}

	c := &wsConn{
		conn:         conn,
		session:      session,
		log:          logging.For(session.ID()),
		silenceAfter: s.opts.NoSpeechTimeout,
	}

	bus := session.Bus()
	if s.repo != nil {
		voicebot.AttachJournal(bus, s.repo)
	}
	bus.Subscribe(voicebot.EventTypeOutcome, func(e voicebot.Event) {
		ev, ok := e.(*voicebot.OutcomeEvent)
		if !ok {
			return
		}
		c.send(serverFrame{Type: frameOutcome, SessionID: ev.SessionID, Turn: ev.Turn, Outcome: newOutcomePayload(ev.Outcome)})
	})
	bus.Subscribe(voicebot.EventTypeSessionReset, func(e voicebot.Event) {
		ev, ok := e.(*voicebot.SessionResetEvent)
		if !ok {
			return
		}
		c.send(serverFrame{Type: frameReset, SessionID: ev.SessionID, State: dialogue.StateCalibration.String()})
	})

	s.track(c)
	defer s.untrack(c)
	defer c.close()

	c.log.Infof("websocket session opened from %s", r.RemoteAddr)
	c.readLoop(r)
	c.log.Infof("websocket session closed")
}

func (c *wsConn) readLoop(r *http.Request) {
	c.conn.SetReadLimit(maxFrameSize)
	c.armSilence()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warnf("websocket read: %v", err)
			}
			return
		}
		c.armSilence()

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError(fmt.Errorf("invalid frame: %w", err))
			continue
		}
		if err := c.handle(r, frame); err != nil {
			c.sendError(err)
		}
	}
}

func (c *wsConn) handle(r *http.Request, frame clientFrame) error {
	var err error
	switch frame.Type {
	case frameUtterance:
		_, err = c.session.HandleUtterance(r.Context(), frame.Text)
	case frameRecognize:
		_, err = c.session.HandleRecognition(dialogue.RecognitionResult{
			IntentName: frame.Intent,
			Confidence: frame.Confidence,
			Entities:   frame.Entities,
			Traits:     frame.Traits,
		})
	case frameNoSpeech:
		_, err = c.session.HandleNoSpeech()
	case frameReset:
		err = c.session.Reset()
	default:
		err = fmt.Errorf("unknown frame type %q", frame.Type)
	}
	return err
}

// armSilence 重新开始无语音计时；超时后注入一次 no-speech 并继续计时
func (c *wsConn) armSilence() {
	if c.silenceAfter <= 0 {
		return
	}
	c.silenceMu.Lock()
	defer c.silenceMu.Unlock()

	if c.closed {
		return
	}
	if c.silence != nil {
		c.silence.Stop()
	}
	c.silence = time.AfterFunc(c.silenceAfter, c.onSilence)
}

func (c *wsConn) onSilence() {
	_, err := c.session.HandleNoSpeech()
	switch {
	case err == nil:
		c.log.Debugf("no speech for %s", c.silenceAfter)
	case errors.Is(err, voicebot.ErrBusy):
	case errors.Is(err, voicebot.ErrClosed):
		return
	default:
		c.log.Warnf("no-speech turn: %v", err)
	}
	c.armSilence()
}

func (c *wsConn) send(frame serverFrame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(frame); err != nil {
		c.log.Debugf("websocket write %s: %v", frame.Type, err)
	}
}

func (c *wsConn) sendError(err error) {
	c.send(serverFrame{Type: frameError, SessionID: c.session.ID(), Error: err.Error()})
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		c.silenceMu.Lock()
		c.closed = true
		if c.silence != nil {
			c.silence.Stop()
		}
		c.silenceMu.Unlock()

		c.session.Close()
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
	})
}
