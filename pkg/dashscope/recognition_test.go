package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

var testUpgrader = websocket.Upgrader{}

// newMockASR starts a mock recognition upstream. The handler owns the
// upgraded connection for the lifetime of the test connection.
func newMockASR(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "bearer test-key" {
			t.Errorf("Authorization = %q; want bearer test-key", got)
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	env := map[string]interface{}{
		"header": map[string]interface{}{"event": event},
	}
	if payload != nil {
		env["payload"] = payload
	}
	if err := conn.WriteJSON(env); err != nil {
		t.Errorf("mock write %s: %v", event, err)
	}
}

func resultPayload(text string, begin, end int64, sentenceEnd bool) map[string]interface{} {
	return map[string]interface{}{
		"output": map[string]interface{}{
			"sentence": map[string]interface{}{
				"text":         text,
				"begin_time":   begin,
				"end_time":     end,
				"sentence_end": sentenceEnd,
			},
		},
	}
}

func TestRecognitionRoundTrip(t *testing.T) {
	var gotFrames [][]byte
	framesDone := make(chan struct{})

	srv := newMockASR(t, func(conn *websocket.Conn) {
		// run-task
		var env asrEnvelope
		if _, data, err := conn.ReadMessage(); err != nil {
			t.Errorf("mock read run-task: %v", err)
			return
		} else if err := json.Unmarshal(data, &env); err != nil {
			t.Errorf("mock parse run-task: %v", err)
			return
		}
		if env.Header.Action != "run-task" {
			t.Errorf("action = %q; want run-task", env.Header.Action)
		}
		if env.Header.Streaming != "duplex" {
			t.Errorf("streaming = %q; want duplex", env.Header.Streaming)
		}
		if ok, _ := regexp.MatchString("^[0-9a-f]{32}$", env.Header.TaskID); !ok {
			t.Errorf("task_id = %q; want 32 hex chars", env.Header.TaskID)
		}
		var payload struct {
			Model      string `json:"model"`
			Parameters struct {
				Format     string `json:"format"`
				SampleRate int    `json:"sample_rate"`
			} `json:"parameters"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			t.Errorf("mock parse payload: %v", err)
		}
		if payload.Parameters.Format != "pcm" || payload.Parameters.SampleRate != 16000 {
			t.Errorf("parameters = %+v; want pcm/16000", payload.Parameters)
		}

		sendEvent(t, conn, "task-started", nil)

		// Three binary frames, then finish-task.
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				t.Errorf("mock read: %v", err)
				return
			}
			if mt == websocket.BinaryMessage {
				gotFrames = append(gotFrames, data)
				continue
			}
			var fin asrEnvelope
			if json.Unmarshal(data, &fin) == nil && fin.Header.Action == "finish-task" {
				break
			}
		}
		close(framesDone)

		sendEvent(t, conn, "result-generated", resultPayload("你好", 0, 800, false))
		sendEvent(t, conn, "result-generated", resultPayload("你好医生", 0, 1500, true))
		sendEvent(t, conn, "task-finished", nil)
	})

	client := NewClient("test-key", WithRecognitionURL(wsURL(srv)))
	task, err := client.Recognition.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer task.Close()

	if err := task.Start(context.Background(), &TaskConfig{SampleRate: 16000}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := task.State(); got != StateStreaming {
		t.Errorf("state after Start = %v; want %v", got, StateStreaming)
	}

	frames := [][]byte{{0x01, 0x02}, {0x03}, {0x04, 0x05, 0x06}}
	for _, f := range frames {
		if err := task.SendAudio(f); err != nil {
			t.Fatalf("SendAudio: %v", err)
		}
	}
	if err := task.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	var results []*RecognitionResult
	for result, err := range task.Results() {
		if err != nil {
			t.Fatalf("Results: %v", err)
		}
		results = append(results, result)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results; want 2", len(results))
	}
	if results[0].Text != "你好" || results[0].SentenceEnd {
		t.Errorf("result[0] = %+v; want 你好 / sentence_end=false", results[0])
	}
	if results[1].Text != "你好医生" || !results[1].SentenceEnd {
		t.Errorf("result[1] = %+v; want 你好医生 / sentence_end=true", results[1])
	}
	if results[1].EndTimeMs != 1500 {
		t.Errorf("result[1].EndTimeMs = %d; want 1500", results[1].EndTimeMs)
	}
	if got := task.State(); got != StateFinished {
		t.Errorf("final state = %v; want %v", got, StateFinished)
	}

	<-framesDone
	if len(gotFrames) != len(frames) {
		t.Fatalf("upstream got %d frames; want %d", len(gotFrames), len(frames))
	}
	for i := range frames {
		if !bytes.Equal(gotFrames[i], frames[i]) {
			t.Errorf("frame[%d] = %v; want %v", i, gotFrames[i], frames[i])
		}
	}
}

func TestRecognitionStartTimeout(t *testing.T) {
	srv := newMockASR(t, func(conn *websocket.Conn) {
		// Swallow run-task and never acknowledge.
		conn.ReadMessage()
		conn.ReadMessage()
	})

	client := NewClient("test-key",
		WithRecognitionURL(wsURL(srv)),
		WithStartTimeout(100*time.Millisecond))
	task, err := client.Recognition.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer task.Close()

	if err := task.Start(context.Background(), nil); !errors.Is(err, ErrTaskStartTimeout) {
		t.Errorf("Start = %v; want ErrTaskStartTimeout", err)
	}
	if got := task.State(); got != StateFailed {
		t.Errorf("state = %v; want %v", got, StateFailed)
	}
}

func TestRecognitionStartRejected(t *testing.T) {
	srv := newMockASR(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteJSON(map[string]interface{}{
			"header": map[string]interface{}{
				"event":         "task-failed",
				"error_code":    "InvalidParameter",
				"error_message": "unsupported sample rate",
			},
		})
	})

	client := NewClient("test-key", WithRecognitionURL(wsURL(srv)))
	task, err := client.Recognition.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer task.Close()

	err = task.Start(context.Background(), nil)
	if err == nil {
		t.Fatal("Start succeeded; want rejection")
	}
	derr, ok := AsError(err)
	if !ok {
		t.Fatalf("Start error = %v; want *Error", err)
	}
	if derr.Code != "InvalidParameter" || derr.Message != "unsupported sample rate" {
		t.Errorf("error = %+v; want InvalidParameter/unsupported sample rate", derr)
	}
}

func TestRecognitionSendAudioBeforeStart(t *testing.T) {
	srv := newMockASR(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})

	client := NewClient("test-key", WithRecognitionURL(wsURL(srv)))
	task, err := client.Recognition.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer task.Close()

	if err := task.SendAudio([]byte{0x00}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SendAudio before Start = %v; want ErrInvalidState", err)
	}
}

func TestRecognitionFailedMidStream(t *testing.T) {
	srv := newMockASR(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		sendEvent(t, conn, "task-started", nil)
		sendEvent(t, conn, "result-generated", resultPayload("partial", 0, 500, false))
		conn.WriteJSON(map[string]interface{}{
			"header": map[string]interface{}{
				"event":         "task-failed",
				"error_message": "backend unavailable",
			},
		})
	})

	client := NewClient("test-key", WithRecognitionURL(wsURL(srv)))
	task, err := client.Recognition.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer task.Close()

	if err := task.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var results []*RecognitionResult
	var terminal error
	for result, err := range task.Results() {
		if err != nil {
			terminal = err
			break
		}
		results = append(results, result)
	}

	if len(results) != 1 || results[0].Text != "partial" {
		t.Errorf("results = %+v; want one partial result", results)
	}
	if terminal == nil || !strings.Contains(terminal.Error(), "backend unavailable") {
		t.Errorf("terminal error = %v; want backend unavailable", terminal)
	}
	if got := task.State(); got != StateFailed {
		t.Errorf("state = %v; want %v", got, StateFailed)
	}
}

func TestRecognitionCloseIdempotent(t *testing.T) {
	srv := newMockASR(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})

	client := NewClient("test-key", WithRecognitionURL(wsURL(srv)))
	task, err := client.Recognition.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := task.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := task.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRecognitionConnectRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithRecognitionURL(wsURL(srv)))
	_, err := client.Recognition.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect succeeded; want error")
	}
	derr, ok := AsError(err)
	if !ok {
		t.Fatalf("Connect error = %v; want *Error", err)
	}
	if derr.Code != ErrCodeConnectionFailed || derr.HTTPStatus != http.StatusForbidden {
		t.Errorf("error = %+v; want ConnectionFailed/403", derr)
	}
}
