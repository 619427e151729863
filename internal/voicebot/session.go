// Package voicebot runs dialogue sessions: it feeds utterances through an
// interpreter into the dialogue machine, guards against overlapping turns,
// schedules the delayed reset a finished session asks for, and publishes
// every outcome on an event bus.
package voicebot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/liuscraft/orion-therapy/internal/dialogue"
	"github.com/liuscraft/orion-therapy/internal/logging"
	"github.com/liuscraft/orion-therapy/internal/nlu"
)

// DefaultResetDelay is used when Options.ResetDelay is zero.
const DefaultResetDelay = 5 * time.Second

var (
	// ErrBusy is returned when a turn arrives while another is still being handled.
	ErrBusy = errors.New("session is busy")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session is closed")
	// ErrNoInterpreter is returned by HandleUtterance on a recognition-only session.
	ErrNoInterpreter = errors.New("session has no interpreter")
)

// Options 会话可选参数
type Options struct {
	// ID defaults to a random UUID.
	ID string
	// Bus defaults to a private bus.
	Bus EventBus
	// ResetDelay is how long a finished session waits before resetting.
	ResetDelay time.Duration
}

// Session 单个用户会话
type Session struct {
	id         string
	machine    *dialogue.Machine
	interp     nlu.Interpreter
	bus        EventBus
	log        *logging.SessionLogger
	resetDelay time.Duration

	processing atomic.Bool

	mu         sync.Mutex
	resetTimer *time.Timer
	resetGen   uint64
	closed     bool
}

// NewSession 创建会话；interp 为 nil 时只接受预识别结果
func NewSession(cfg dialogue.Config, interp nlu.Interpreter, opts Options) (*Session, error) {
	machine, err := dialogue.New(cfg)
	if err != nil {
		return nil, err
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	bus := opts.Bus
	if bus == nil {
		bus = NewEventBus()
	}
	delay := opts.ResetDelay
	if delay <= 0 {
		delay = DefaultResetDelay
	}

	return &Session{
		id:         id,
		machine:    machine,
		interp:     interp,
		bus:        bus,
		log:        logging.For(id),
		resetDelay: delay,
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Bus() EventBus {
	return s.bus
}

// State 当前会话状态
func (s *Session) State() dialogue.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

// Snapshot 状态机快照
func (s *Session) Snapshot() dialogue.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Snapshot()
}

// ResetPending 是否有尚未执行的延时重置
func (s *Session) ResetPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetTimer != nil
}

// HandleUtterance 识别文本并处理；识别失败按未理解处理
func (s *Session) HandleUtterance(ctx context.Context, text string) (dialogue.DispatchOutcome, error) {
	if s.interp == nil {
		return dialogue.DispatchOutcome{}, ErrNoInterpreter
	}
	if !s.processing.CompareAndSwap(false, true) {
		return dialogue.DispatchOutcome{}, ErrBusy
	}
	defer s.processing.Store(false)

	if s.isClosed() {
		return dialogue.DispatchOutcome{}, ErrClosed
	}

	turn := s.log.StartTurn()
	result, err := s.interp.Interpret(ctx, text)
	if err != nil {
		s.log.Warnf("interpret via %s failed, treating as misunderstood: %v", s.interp.Name(), err)
		result = dialogue.Misunderstood()
	}
	return s.dispatch(turn, text, result)
}

// HandleRecognition 处理外部识别器给出的结果
func (s *Session) HandleRecognition(result dialogue.RecognitionResult) (dialogue.DispatchOutcome, error) {
	if !s.processing.CompareAndSwap(false, true) {
		return dialogue.DispatchOutcome{}, ErrBusy
	}
	defer s.processing.Store(false)

	return s.dispatch(s.log.StartTurn(), "", result)
}

// HandleNoSpeech 无语音超时
func (s *Session) HandleNoSpeech() (dialogue.DispatchOutcome, error) {
	return s.HandleRecognition(dialogue.Misunderstood())
}

// Reset 立即重置会话并取消待执行的延时重置
func (s *Session) Reset() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.cancelResetLocked()
	old := s.machine.State()
	s.machine.ResetSession()
	s.mu.Unlock()

	s.log.Infof("session reset")
	s.publishReset(old, false)
	return nil
}

// Close 关闭会话，取消延时重置；可重复调用
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.cancelResetLocked()
}

func (s *Session) dispatch(turn uint64, utterance string, result dialogue.RecognitionResult) (dialogue.DispatchOutcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return dialogue.DispatchOutcome{}, ErrClosed
	}
	out := s.machine.HandleRecognition(result)
	if out.SessionShouldReset {
		s.scheduleResetLocked()
	}
	s.mu.Unlock()

	s.log.Infof("intent=%q confidence=%.2f band=%s state=%s->%s escalated=%t",
		out.Intent, result.Confidence, out.Band, out.PreviousState, out.NewState, out.Escalated)

	s.bus.Publish(NewOutcomeEvent(s.id, turn, utterance, result, out))
	if out.StateChanged() {
		s.bus.Publish(NewStateChangedEvent(s.id, out.PreviousState, out.NewState))
	}
	return out, nil
}

// scheduleResetLocked 以最后一次请求为准重新计时
func (s *Session) scheduleResetLocked() {
	s.cancelResetLocked()
	gen := s.resetGen
	s.resetTimer = time.AfterFunc(s.resetDelay, func() {
		s.fireReset(gen)
	})
	s.log.Debugf("session reset scheduled in %s", s.resetDelay)
}

func (s *Session) cancelResetLocked() {
	s.resetGen++
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
}

func (s *Session) fireReset(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.resetGen {
		s.mu.Unlock()
		return
	}
	s.resetTimer = nil
	old := s.machine.State()
	s.machine.ResetSession()
	s.mu.Unlock()

	s.log.Infof("scheduled session reset")
	s.publishReset(old, true)
}

func (s *Session) publishReset(old dialogue.SessionState, scheduled bool) {
	s.bus.Publish(NewSessionResetEvent(s.id, scheduled))
	if old != dialogue.StateCalibration {
		s.bus.Publish(NewStateChangedEvent(s.id, old, dialogue.StateCalibration))
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
