package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/medivoice/voicerelay/pkg/dashscope"
	"github.com/medivoice/voicerelay/pkg/relay"
)

// handleTTS bridges one client connection to one upstream synthesis
// session. The client sends one JSON request; the gateway answers with
// tts_ready, then raw PCM frames as they arrive from the upstream, then
// tts_finished.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	apiKey := s.apiKey(r)
	if apiKey == "" {
		http.Error(w, "missing api_key", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := newClientConn(conn)

	var req ttsRequest
	if _, data, err := conn.ReadMessage(); err != nil {
		client.close()
		return
	} else if err := json.Unmarshal(data, &req); err != nil {
		client.writeTerminal(ttsEvent{Event: "error", Message: "invalid request: " + err.Error()})
		client.close()
		return
	}
	if req.Text == "" {
		client.writeTerminal(ttsEvent{Event: "error", Message: "text is required"})
		client.close()
		return
	}

	voice := req.Voice
	if voice == "" {
		voice = s.cfg.Voice
	}

	sess, _ := s.registry.GetOrCreate("", relay.Config{
		Format:     DefaultFormat,
		SampleRate: dashscope.SynthesisSampleRate,
		Voice:      voice,
	})
	defer s.registry.Close(sess.ID)

	log := s.log.With("session_id", sess.ID, "endpoint", "tts")
	log.Info("session created", "voice", voice, "text_len", len(req.Text))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess.BindCancel(cancel)
	sess.SetState(relay.StateStarting)

	tts, err := s.newUpstreamClient(apiKey).Synthesis.Connect(ctx, voice)
	if err != nil {
		s.failTTS(log, client, sess, fmt.Errorf("upstream connect: %w", err))
		return
	}
	sess.AttachTTS(tts)

	if err := tts.ConfigureSession(ctx, nil); err != nil {
		s.failTTS(log, client, sess, fmt.Errorf("configure session: %w", err))
		return
	}
	if err := tts.AppendText(req.Text); err != nil {
		s.failTTS(log, client, sess, fmt.Errorf("append text: %w", err))
		return
	}
	if err := tts.Finish(); err != nil {
		s.failTTS(log, client, sess, fmt.Errorf("finish session: %w", err))
		return
	}

	sess.SetState(relay.StateActive)
	client.writeJSON(ttsEvent{Event: "tts_ready"})

	rly := relay.New(client.close, tts.Close)
	err = rly.Run(ctx, s.ttsInbound(client), s.ttsOutbound(client, tts))
	if err != nil {
		sess.Fail(err)
		log.Warn("session failed", "error", err)
		return
	}
	log.Info("session finished")
}

// ttsInbound drains the client connection so a disconnect is noticed while
// audio is still streaming out.
func (s *Server) ttsInbound(client *clientConn) relay.Pump {
	return func(ctx context.Context) error {
		for {
			if _, _, err := client.conn.ReadMessage(); err != nil {
				return relay.Done
			}
		}
	}
}

// ttsOutbound forwards synthesized frames to the client as they arrive.
// Frames are never held back for the whole utterance; first-byte latency
// is the contract here.
func (s *Server) ttsOutbound(client *clientConn, tts *dashscope.SynthesisSession) relay.Pump {
	return func(ctx context.Context) error {
		for frame, err := range tts.AudioFrames() {
			if err != nil {
				client.writeTerminal(ttsEvent{Event: "error", Message: err.Error()})
				return err
			}
			if err := client.writeBinary(frame); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}
		}

		if tts.State() != dashscope.StateFinished {
			client.writeTerminal(ttsEvent{Event: "error", Message: "session closed"})
			return relay.Done
		}

		client.writeTerminal(ttsEvent{Event: "tts_finished"})
		return relay.Done
	}
}

// failTTS reports a fatal pre-relay error and tears the connection down.
func (s *Server) failTTS(log *slog.Logger, client *clientConn, sess *relay.Session, err error) {
	sess.Fail(err)
	log.Warn("session failed", "error", err)
	client.writeTerminal(ttsEvent{Event: "error", Message: err.Error()})
	client.close()
}
