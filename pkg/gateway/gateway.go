// Package gateway terminates client WebSocket connections and bridges them
// to the upstream realtime speech services.
//
// The gateway itself is stateless: connection-time configuration is parsed
// into an immutable value, a session is created in the registry, and all
// further state lives in the session and its upstream links. Every client
// connection ends with either one terminal success event or exactly one
// error frame.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/medivoice/voicerelay/pkg/dashscope"
	"github.com/medivoice/voicerelay/pkg/relay"
)

// Defaults for connection-time parameters.
const (
	DefaultSampleRate = 16000
	DefaultFormat     = "pcm"
	DefaultVoice      = dashscope.VoiceCherry
)

// Config configures the gateway. It is immutable after New.
type Config struct {
	// APIKey is the upstream credential used when the client does not
	// supply one. Empty means clients must authenticate themselves.
	APIKey string

	// RecognitionURL and SynthesisURL override the upstream endpoints.
	RecognitionURL string
	SynthesisURL   string

	// StartTimeout bounds the upstream task/session start handshakes.
	StartTimeout time.Duration

	// Voice is the default synthesis voice.
	Voice string
}

// Server is the client gateway.
type Server struct {
	cfg      Config
	registry *relay.Registry
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a gateway serving sessions out of the given registry.
func New(cfg Config, registry *relay.Registry, logger *slog.Logger) *Server {
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		log:      logger,
		upgrader: websocket.Upgrader{
			// The gateway fronts a local thin client, not a browser app.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Registry returns the session registry the gateway serves out of.
func (s *Server) Registry() *relay.Registry {
	return s.registry
}

// Handler returns the HTTP handler with all gateway routes mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/asr", s.handleASR)
	mux.HandleFunc("/tts", s.handleTTS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/config", s.handleConfig)
	return mux
}

// apiKey resolves the upstream credential for one request.
func (s *Server) apiKey(r *http.Request) string {
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key
	}
	return s.cfg.APIKey
}

// newUpstreamClient builds a per-connection upstream client carrying the
// request's credential. Configuration is threaded through explicitly; the
// process environment is never touched.
func (s *Server) newUpstreamClient(apiKey string) *dashscope.Client {
	opts := []dashscope.Option{}
	if s.cfg.RecognitionURL != "" {
		opts = append(opts, dashscope.WithRecognitionURL(s.cfg.RecognitionURL))
	}
	if s.cfg.SynthesisURL != "" {
		opts = append(opts, dashscope.WithSynthesisURL(s.cfg.SynthesisURL))
	}
	if s.cfg.StartTimeout > 0 {
		opts = append(opts, dashscope.WithStartTimeout(s.cfg.StartTimeout))
	}
	return dashscope.NewClient(apiKey, opts...)
}

// parseASRConfig builds the immutable session configuration from query
// parameters. VAD parameters are passed through to the upstream opaquely.
func parseASRConfig(r *http.Request) (relay.Config, error) {
	q := r.URL.Query()

	cfg := relay.Config{
		SampleRate: DefaultSampleRate,
		Format:     DefaultFormat,
	}

	if v := q.Get("sample_rate"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil || rate <= 0 {
			return relay.Config{}, &paramError{param: "sample_rate", value: v}
		}
		cfg.SampleRate = rate
	}
	if v := q.Get("format"); v != "" {
		cfg.Format = v
	}
	if v := q.Get("max_sentence_silence"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return relay.Config{}, &paramError{param: "max_sentence_silence", value: v}
		}
		cfg.MaxSentenceSilence = ms
	}
	if v := q.Get("semantic_punctuation"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return relay.Config{}, &paramError{param: "semantic_punctuation", value: v}
		}
		cfg.SemanticPunctuation = on
	}
	cfg.VocabularyID = q.Get("vocabulary_id")
	if v := q.Get("language_hints"); v != "" {
		cfg.LanguageHints = strings.Split(v, ",")
	}

	return cfg, nil
}

type paramError struct {
	param string
	value string
}

func (e *paramError) Error() string {
	return "invalid " + e.param + ": " + e.value
}

// handleHealth reports liveness and the number of active sessions.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}

// handleConfig describes the connection parameters the gateway accepts.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"asr": map[string]interface{}{
			"sample_rate": DefaultSampleRate,
			"format":      DefaultFormat,
		},
		"tts": map[string]interface{}{
			"sample_rate": dashscope.SynthesisSampleRate,
			"format":      DefaultFormat,
			"voice":       s.cfg.Voice,
			"voices": []string{
				dashscope.VoiceChelsie,
				dashscope.VoiceCherry,
				dashscope.VoiceSerena,
				dashscope.VoiceEthan,
			},
		},
	})
}
