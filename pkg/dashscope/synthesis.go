package dashscope

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// appendChunkBytes is the maximum size of one input_text_buffer.append
// message. Larger inputs are split on rune boundaries.
const appendChunkBytes = 4096

// SynthesisService provides access to the realtime synthesis API.
type SynthesisService struct {
	client *Client
}

// Connect opens one upstream synthesis connection using the given voice.
// The returned session is owned exclusively by the caller.
func (s *SynthesisService) Connect(ctx context.Context, voice string) (*SynthesisSession, error) {
	url := fmt.Sprintf("%s?model=%s", s.client.config.ttsURL, ModelQwenTTSRealtime)

	dialer := websocket.Dialer{
		HandshakeTimeout: s.client.config.httpClient.Timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, s.client.authHeader())
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       ErrCodeConnectionFailed,
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("dashscope: failed to connect: %w", err)
	}

	session := &SynthesisSession{
		conn:    conn,
		client:  s.client,
		voice:   voice,
		format:  AudioFormatPCM,
		state:   StateConnecting,
		confCh:  make(chan error, 1),
		frames:  make(chan frameOrError, 64),
		closeCh: make(chan struct{}),
	}

	go session.readLoop()

	return session, nil
}

// SynthesisSession drives one synthesis session over one upstream
// connection.
//
// Protocol states: Connecting → SessionCreated → SessionUpdated →
// Synthesizing → {Finished, Failed}. The upstream must acknowledge
// configuration with session.created then session.updated, in that order.
type SynthesisSession struct {
	conn   *websocket.Conn
	client *Client
	voice  string
	format string

	writeMu sync.Mutex
	stateMu sync.Mutex
	state   LinkState

	confCh    chan error
	frames    chan frameOrError
	closeCh   chan struct{}
	closeOnce sync.Once
}

type frameOrError struct {
	frame []byte
	err   error
}

// generateEventID generates a unique client event ID.
func generateEventID() string {
	return "event_" + uuid.New().String()[:8]
}

// Voice returns the voice the session was opened with.
func (s *SynthesisSession) Voice() string {
	return s.voice
}

// Format returns the negotiated output format.
func (s *SynthesisSession) Format() string {
	return s.format
}

// State returns the current protocol state.
func (s *SynthesisSession) State() LinkState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *SynthesisSession) setState(st LinkState) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// ConfigureSession sends session.update and blocks until the upstream has
// acknowledged with session.created followed by session.updated. Receiving
// the acknowledgements out of order is a protocol violation; receiving
// neither within the start timeout returns ErrSessionConfigTimeout.
func (s *SynthesisSession) ConfigureSession(ctx context.Context, config *SessionConfig) error {
	if s.State() != StateConnecting {
		return ErrInvalidState
	}
	if config == nil {
		config = &SessionConfig{}
	}

	voice := config.Voice
	if voice == "" {
		voice = s.voice
	}
	format := config.ResponseFormat
	if format == "" {
		format = AudioFormatPCM
	}
	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = SynthesisSampleRate
	}
	mode := config.Mode
	if mode == "" {
		mode = ModeServerCommit
	}
	s.format = format

	err := s.sendEvent(map[string]interface{}{
		"event_id": generateEventID(),
		"type":     "session.update",
		"session": map[string]interface{}{
			"mode":            mode,
			"voice":           voice,
			"response_format": format,
			"sample_rate":     sampleRate,
		},
	})
	if err != nil {
		return fmt.Errorf("dashscope: send session.update: %w", err)
	}

	timer := time.NewTimer(s.client.config.startTimeout)
	defer timer.Stop()

	select {
	case err := <-s.confCh:
		return err
	case <-timer.C:
		s.setState(StateFailed)
		return ErrSessionConfigTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closeCh:
		return ErrClosed
	}
}

// AppendText appends text to the input buffer, splitting large inputs into
// multiple append messages on rune boundaries.
func (s *SynthesisSession) AppendText(text string) error {
	if st := s.State(); st != StateSessionUpdated && st != StateSynthesizing {
		return ErrInvalidState
	}

	for _, chunk := range splitText(text, appendChunkBytes) {
		err := s.sendEvent(map[string]interface{}{
			"event_id": generateEventID(),
			"type":     "input_text_buffer.append",
			"text":     chunk,
		})
		if err != nil {
			return fmt.Errorf("dashscope: send append: %w", err)
		}
	}
	return nil
}

// Finish signals that no more text will arrive. Completion is observed by
// the AudioFrames sequence terminating.
func (s *SynthesisSession) Finish() error {
	if st := s.State(); st != StateSessionUpdated && st != StateSynthesizing {
		return ErrInvalidState
	}

	err := s.sendEvent(map[string]interface{}{
		"event_id": generateEventID(),
		"type":     "session.finish",
	})
	if err != nil {
		return fmt.Errorf("dashscope: send session.finish: %w", err)
	}
	return nil
}

// AudioFrames returns the synthesized audio as a finite ordered sequence of
// PCM frames, one per response.audio.delta event. Frames are produced as
// they arrive; the whole utterance is never buffered. The sequence ends on
// session.finished; an upstream error event surfaces as the terminal error.
func (s *SynthesisSession) AudioFrames() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			select {
			case <-s.closeCh:
				return
			case item, ok := <-s.frames:
				if !ok {
					return
				}
				if !yield(item.frame, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}

// Close closes the upstream connection. It is idempotent.
func (s *SynthesisSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close()
	})
	return err
}

// sendEvent sends one typed JSON envelope.
func (s *SynthesisSession) sendEvent(event map[string]interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(event)
}

// deliver pushes one item to the AudioFrames consumer.
func (s *SynthesisSession) deliver(item frameOrError) {
	select {
	case s.frames <- item:
	case <-s.closeCh:
	}
}

// fail records a terminal error, unblocking ConfigureSession if it is
// still waiting.
func (s *SynthesisSession) fail(err error) {
	s.setState(StateFailed)
	select {
	case s.confCh <- err:
	default:
	}
	s.deliver(frameOrError{err: err})
}

// readLoop reads upstream events until a terminal event, a transport error
// or Close.
func (s *SynthesisSession) readLoop() {
	defer close(s.frames)

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.fail(fmt.Errorf("dashscope: read error: %w", err))
			return
		}

		var event struct {
			Type  string `json:"type"`
			Delta string `json:"delta"`
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			s.deliver(frameOrError{err: fmt.Errorf("dashscope: parse error: %w", err)})
			continue
		}

		switch event.Type {
		case "session.created":
			if s.State() != StateConnecting {
				s.fail(&Error{
					Code:    ErrCodeProtocolViolation,
					Message: "session.created received out of order",
				})
				return
			}
			s.setState(StateSessionCreated)

		case "session.updated":
			if s.State() != StateSessionCreated {
				s.fail(&Error{
					Code:    ErrCodeProtocolViolation,
					Message: "session.updated received before session.created",
				})
				return
			}
			s.setState(StateSessionUpdated)
			s.confCh <- nil

		case "response.audio.delta":
			frame, err := base64.StdEncoding.DecodeString(event.Delta)
			if err != nil {
				s.deliver(frameOrError{err: fmt.Errorf("dashscope: decode delta: %w", err)})
				continue
			}
			if st := s.State(); st == StateSessionUpdated {
				s.setState(StateSynthesizing)
			} else if st != StateSynthesizing {
				s.fail(&Error{
					Code:    ErrCodeProtocolViolation,
					Message: "response.audio.delta received before session was configured",
				})
				return
			}
			s.deliver(frameOrError{frame: frame})

		case "session.finished":
			s.setState(StateFinished)
			return

		case "error":
			code := event.Error.Code
			if code == "" {
				code = ErrCodeSessionFailed
			}
			s.fail(&Error{
				Code:    code,
				Message: event.Error.Message,
			})
			return

			// input_text_buffer.committed, response.created,
			// response.audio.done and response.done carry no audio and
			// need no state change.
		}
	}
}

// splitText splits text into chunks of at most max bytes without breaking
// runes.
func splitText(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	var b []byte
	for _, r := range text {
		if len(b)+len(string(r)) > max {
			chunks = append(chunks, string(b))
			b = b[:0]
		}
		b = append(b, string(r)...)
	}
	if len(b) > 0 {
		chunks = append(chunks, string(b))
	}
	return chunks
}
