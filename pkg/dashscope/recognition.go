package dashscope

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// RecognitionService provides access to the realtime recognition API.
type RecognitionService struct {
	client *Client
}

// Connect opens one upstream recognition connection. The returned task is
// owned exclusively by the caller and must be closed when done.
func (s *RecognitionService) Connect(ctx context.Context) (*RecognitionTask, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.client.config.httpClient.Timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, s.client.config.asrURL, s.client.authHeader())
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

	task := &RecognitionTask{
		conn:    conn,
		client:  s.client,
		state:   StateConnecting,
		startCh: make(chan error, 1),
		results: make(chan resultOrError, 64),
		closeCh: make(chan struct{}),
	}

	go task.readLoop()

	return task, nil
}

// RecognitionTask drives one recognition task over one upstream connection.
//
// Protocol states: Connecting → TaskStarted → Streaming → Finishing →
// {Finished, Failed}. SendAudio is valid only while streaming.
type RecognitionTask struct {
	conn   *websocket.Conn
	client *Client
	taskID string

	writeMu sync.Mutex
	stateMu sync.Mutex
	state   LinkState

	startCh   chan error
	results   chan resultOrError
	closeCh   chan struct{}
	closeOnce sync.Once
}

type resultOrError struct {
	result *RecognitionResult
	err    error
}

// asrEnvelope is the wire format of the recognition task protocol.
type asrEnvelope struct {
	Header  asrHeader       `json:"header"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type asrHeader struct {
	Action       string `json:"action,omitempty"`
	Event        string `json:"event,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	Streaming    string `json:"streaming,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// newTaskID generates the 32-hex task identifier required by the protocol.
func newTaskID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// TaskID returns the task identifier generated by Start.
func (t *RecognitionTask) TaskID() string {
	return t.taskID
}

// State returns the current protocol state.
func (t *RecognitionTask) State() LinkState {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.state
}

func (t *RecognitionTask) setState(s LinkState) {
	t.stateMu.Lock()
	t.state = s
	t.stateMu.Unlock()
}

// Start generates a fresh task ID, sends run-task and blocks until the
// upstream acknowledges with task-started, the configured start timeout
// elapses (ErrTaskStartTimeout), or the upstream rejects the task.
func (t *RecognitionTask) Start(ctx context.Context, config *TaskConfig) error {
	if t.State() != StateConnecting {
		return ErrInvalidState
	}
	if config == nil {
		config = &TaskConfig{}
	}

	model := config.Model
	if model == "" {
		model = ModelParaformerRealtimeV2
	}
	format := config.Format
	if format == "" {
		format = AudioFormatPCM
	}
	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	parameters := map[string]interface{}{
		"format":      format,
		"sample_rate": sampleRate,
	}
	if config.MaxSentenceSilence > 0 {
		parameters["max_sentence_silence"] = config.MaxSentenceSilence
	}
	if config.SemanticPunctuation {
		parameters["semantic_punctuation_enabled"] = true
	}
	if config.VocabularyID != "" {
		parameters["vocabulary_id"] = config.VocabularyID
	}
	if len(config.LanguageHints) > 0 {
		parameters["language_hints"] = config.LanguageHints
	}

	t.taskID = newTaskID()

	payload := map[string]interface{}{
		"task_group": "audio",
		"task":       "asr",
		"function":   "recognition",
		"model":      model,
		"parameters": parameters,
		"input":      map[string]interface{}{},
	}

	if err := t.sendAction("run-task", payload); err != nil {
		return fmt.Errorf("dashscope: send run-task: %w", err)
	}

	timer := time.NewTimer(t.client.config.startTimeout)
	defer timer.Stop()

	select {
	case err := <-t.startCh:
		if err != nil {
			return err
		}
		t.setState(StateStreaming)
		return nil
	case <-timer.C:
		t.setState(StateFailed)
		return ErrTaskStartTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-t.closeCh:
		return ErrClosed
	}
}

// SendAudio forwards one binary audio frame verbatim. It returns
// ErrInvalidState unless the task is streaming: audio sent before the task
// has started or after Finish would be lost upstream, so the contract
// violation is surfaced instead of being dropped.
func (t *RecognitionTask) SendAudio(frame []byte) error {
	if t.State() != StateStreaming {
		return ErrInvalidState
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Finish sends finish-task and stops accepting audio. It does not block;
// completion is observed by the Results sequence terminating.
func (t *RecognitionTask) Finish() error {
	t.stateMu.Lock()
	if t.state != StateStreaming {
		t.stateMu.Unlock()
		return ErrInvalidState
	}
	t.state = StateFinishing
	t.stateMu.Unlock()

	payload := map[string]interface{}{
		"input": map[string]interface{}{},
	}
	if err := t.sendAction("finish-task", payload); err != nil {
		return fmt.Errorf("dashscope: send finish-task: %w", err)
	}
	return nil
}

// Results returns the recognized sentences as a finite ordered sequence.
// The sequence ends when the upstream sends task-finished; task-failed and
// transport errors surface as the sequence's terminal error.
func (t *RecognitionTask) Results() iter.Seq2[*RecognitionResult, error] {
	return func(yield func(*RecognitionResult, error) bool) {
		for {
			select {
			case <-t.closeCh:
				return
			case item, ok := <-t.results:
				if !ok {
					return
				}
				if !yield(item.result, item.err) {
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
func (t *RecognitionTask) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)
		err = t.conn.Close()
	})
	return err
}

// sendAction sends one control envelope.
func (t *RecognitionTask) sendAction(action string, payload map[string]interface{}) error {
	env := map[string]interface{}{
		"header": map[string]interface{}{
			"action":    action,
			"task_id":   t.taskID,
			"streaming": "duplex",
		},
		"payload": payload,
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(env)
}

// deliver pushes one item to the Results consumer.
func (t *RecognitionTask) deliver(item resultOrError) {
	select {
	case t.results <- item:
	case <-t.closeCh:
	}
}

// readLoop reads upstream events until a terminal event, a transport error
// or Close.
func (t *RecognitionTask) readLoop() {
	defer close(t.results)

	started := false
	for {
		select {
		case <-t.closeCh:
			return
		default:
		}

		_, message, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
			}
			t.setState(StateFailed)
			rerr := fmt.Errorf("dashscope: read error: %w", err)
			if !started {
				t.startCh <- rerr
			}
			t.deliver(resultOrError{err: rerr})
			return
		}

		var env asrEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			t.deliver(resultOrError{err: fmt.Errorf("dashscope: parse error: %w", err)})
			continue
		}

		switch env.Header.Event {
		case "task-started":
			started = true
			t.setState(StateTaskStarted)
			t.startCh <- nil

		case "result-generated":
			var payload struct {
				Output struct {
					Sentence struct {
						Text        string `json:"text"`
						BeginTime   int64  `json:"begin_time"`
						EndTime     int64  `json:"end_time"`
						SentenceEnd bool   `json:"sentence_end"`
					} `json:"sentence"`
				} `json:"output"`
			}
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				t.deliver(resultOrError{err: fmt.Errorf("dashscope: parse result: %w", err)})
				continue
			}
			t.deliver(resultOrError{result: &RecognitionResult{
				Text:        payload.Output.Sentence.Text,
				BeginTimeMs: payload.Output.Sentence.BeginTime,
				EndTimeMs:   payload.Output.Sentence.EndTime,
				SentenceEnd: payload.Output.Sentence.SentenceEnd,
			}})

		case "task-finished":
			t.setState(StateFinished)
			return

		case "task-failed":
			t.setState(StateFailed)
			ferr := &Error{
				Code:    ErrCodeTaskFailed,
				Message: env.Header.ErrorMessage,
				TaskID:  env.Header.TaskID,
			}
			if env.Header.ErrorCode != "" {
				ferr.Code = env.Header.ErrorCode
			}
			if !started {
				t.startCh <- ferr
			}
			t.deliver(resultOrError{err: ferr})
			return
		}
	}
}
