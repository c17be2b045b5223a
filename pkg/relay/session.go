package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// Errors reported by Session lifecycle operations.
var (
	// ErrBadTransition is returned by SetState for an illegal transition.
	ErrBadTransition = errors.New("relay: illegal session state transition")

	// ErrLinkAttached is returned when a second upstream link of the same
	// kind is attached to a session.
	ErrLinkAttached = errors.New("relay: session already owns a link of this kind")
)

// Config is the connection-time configuration of one session. It is set
// when the session is created and never mutated afterwards.
type Config struct {
	SampleRate          int
	Format              string
	Voice               string
	MaxSentenceSilence  int
	SemanticPunctuation bool
	VocabularyID        string
	LanguageHints       []string
}

// Session owns one client connection and its upstream links.
//
// A session owns at most one recognition link and at most one synthesis
// link at any time, and ownership is exclusive: links are never shared
// between sessions. All session mutation happens through the owning relay
// pumps or through Close.
type Session struct {
	ID        string
	CreatedAt time.Time
	Config    Config

	mu     sync.Mutex
	state  State
	asr    io.Closer
	tts    io.Closer
	cancel context.CancelFunc
	err    error

	closeOnce sync.Once
	closeErr  error
}

func newSession(id string, cfg Config) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Config:    cfg,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState performs a validated state transition.
func (s *Session) SetState(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.canTransition(next) {
		return ErrBadTransition
	}
	s.state = next
	return nil
}

// Fail moves the session to Failed and records the cause. It is a no-op if
// the session is already terminal.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = StateFailed
	if s.err == nil {
		s.err = err
	}
}

// Err returns the error recorded by Fail, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// AttachASR gives the session exclusive ownership of a recognition link.
func (s *Session) AttachASR(link io.Closer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asr != nil {
		return ErrLinkAttached
	}
	s.asr = link
	return nil
}

// AttachTTS gives the session exclusive ownership of a synthesis link.
func (s *Session) AttachTTS(link io.Closer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tts != nil {
		return ErrLinkAttached
	}
	s.tts = link
	return nil
}

// BindCancel registers the cancel function of the session's relay context
// so that Close can cancel in-flight pumps promptly.
func (s *Session) BindCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

// Close cancels any in-flight relay and disconnects all owned upstream
// links. It is idempotent; concurrent and repeated calls observe the first
// call's result. A session that already failed stays Failed; otherwise it
// ends Closed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		asr := s.asr
		tts := s.tts
		s.asr = nil
		s.tts = nil
		if !s.state.Terminal() {
			s.state = StateFinishing
		}
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if asr != nil {
			if err := asr.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
		if tts != nil {
			if err := tts.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}

		s.mu.Lock()
		if !s.state.Terminal() {
			s.state = StateClosed
		}
		s.mu.Unlock()
	})
	return s.closeErr
}
