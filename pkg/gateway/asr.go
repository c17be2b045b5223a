package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/medivoice/voicerelay/pkg/dashscope"
	"github.com/medivoice/voicerelay/pkg/relay"
)

// handleASR bridges one client connection to one upstream recognition
// task. Client binary frames are forwarded upstream verbatim and in order;
// recognition results come back as JSON events.
func (s *Server) handleASR(w http.ResponseWriter, r *http.Request) {
	apiKey := s.apiKey(r)
	if apiKey == "" {
		http.Error(w, "missing api_key", http.StatusUnauthorized)
		return
	}

	cfg, err := parseASRConfig(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := newClientConn(conn)

	sess, created := s.registry.GetOrCreate(r.URL.Query().Get("session_id"), cfg)
	if !created {
		client.writeTerminal(errorFrame{Error: "session already active: " + sess.ID})
		client.close()
		return
	}
	defer s.registry.Close(sess.ID)

	log := s.log.With("session_id", sess.ID, "endpoint", "asr")
	log.Info("session created", "sample_rate", cfg.SampleRate, "format", cfg.Format)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess.BindCancel(cancel)
	sess.SetState(relay.StateStarting)

	task, err := s.newUpstreamClient(apiKey).Recognition.Connect(ctx)
	if err != nil {
		s.failASR(log, client, sess, fmt.Errorf("upstream connect: %w", err))
		return
	}
	sess.AttachASR(task)

	err = task.Start(ctx, &dashscope.TaskConfig{
		Format:              cfg.Format,
		SampleRate:          cfg.SampleRate,
		MaxSentenceSilence:  cfg.MaxSentenceSilence,
		SemanticPunctuation: cfg.SemanticPunctuation,
		VocabularyID:        cfg.VocabularyID,
		LanguageHints:       cfg.LanguageHints,
	})
	if err != nil {
		s.failASR(log, client, sess, fmt.Errorf("task start: %w", err))
		return
	}

	sess.SetState(relay.StateActive)
	log.Info("task started", "task_id", task.TaskID())
	client.writeJSON(taskStartedEvent{Event: "task_started", SessionID: sess.ID})

	rly := relay.New(client.close, task.Close)
	err = rly.Run(ctx, s.asrInbound(client, task), s.asrOutbound(client, task))
	if err != nil {
		sess.Fail(err)
		log.Warn("session failed", "error", err)
		return
	}
	log.Info("session finished")
}

// asrInbound forwards client audio to the upstream task until the client
// goes away. A client disconnect is the normal end of the leg, not an
// error; the client reconnects with a new session to resume.
func (s *Server) asrInbound(client *clientConn, task *dashscope.RecognitionTask) relay.Pump {
	return func(ctx context.Context) error {
		for {
			mt, data, err := client.conn.ReadMessage()
			if err != nil {
				return relay.Done
			}

			switch mt {
			case websocket.BinaryMessage:
				if err := task.SendAudio(data); err != nil {
					client.writeTerminal(errorFrame{Error: err.Error()})
					return fmt.Errorf("forward audio: %w", err)
				}

			case websocket.TextMessage:
				var ctl asrControl
				if json.Unmarshal(data, &ctl) == nil && ctl.Action == "finish" {
					if err := task.Finish(); err != nil {
						client.writeTerminal(errorFrame{Error: err.Error()})
						return fmt.Errorf("finish task: %w", err)
					}
				}
			}
		}
	}
}

// asrOutbound forwards recognition results to the client until the task's
// result sequence terminates.
func (s *Server) asrOutbound(client *clientConn, task *dashscope.RecognitionTask) relay.Pump {
	return func(ctx context.Context) error {
		for result, err := range task.Results() {
			if err != nil {
				client.writeTerminal(errorFrame{Error: err.Error()})
				return err
			}

			ev := resultEvent{
				Event:       "result",
				Text:        result.Text,
				BeginTime:   result.BeginTimeMs,
				EndTime:     result.EndTimeMs,
				SentenceEnd: result.SentenceEnd,
			}
			if err := client.writeJSON(ev); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			if result.SentenceEnd {
				if err := client.writeJSON(sentenceEndEvent{Event: "sentence_end", Text: result.Text}); err != nil {
					return fmt.Errorf("write sentence_end: %w", err)
				}
			}
		}

		if task.State() != dashscope.StateFinished {
			// The sequence ended by cancellation, not task-finished.
			client.writeTerminal(errorFrame{Error: "session closed"})
			return relay.Done
		}

		client.writeTerminal(taskFinishedEvent{Event: "task_finished"})
		return relay.Done
	}
}

// failASR reports a fatal pre-relay error and tears the connection down.
func (s *Server) failASR(log *slog.Logger, client *clientConn, sess *relay.Session, err error) {
	sess.Fail(err)
	log.Warn("session failed", "error", err)
	client.writeTerminal(errorFrame{Error: err.Error()})
	client.close()
}
