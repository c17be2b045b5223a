package dashscope

import (
	"net/http"
	"time"
)

const (
	// DefaultRecognitionURL is the default WebSocket endpoint for the
	// realtime recognition (ASR) task protocol.
	DefaultRecognitionURL = "wss://dashscope.aliyuncs.com/api-ws/v1/inference"

	// DefaultSynthesisURL is the default WebSocket endpoint for the
	// realtime speech synthesis (TTS) session protocol.
	DefaultSynthesisURL = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"

	// DefaultStartTimeout bounds the wait for task-started on the ASR
	// side and session.created/session.updated on the TTS side.
	DefaultStartTimeout = 10 * time.Second
)

// Client is the DashScope realtime speech client.
type Client struct {
	Recognition *RecognitionService
	Synthesis   *SynthesisService

	config *clientConfig
}

// clientConfig holds the client configuration.
type clientConfig struct {
	apiKey       string
	workspaceID  string
	asrURL       string
	ttsURL       string
	httpClient   *http.Client
	startTimeout time.Duration
}

// Option configures the Client.
type Option func(*clientConfig)

// NewClient creates a new DashScope realtime speech client.
//
// The apiKey is required and is sent as a bearer token on every upstream
// connection. It is never read from or written to the process environment.
func NewClient(apiKey string, opts ...Option) *Client {
	if apiKey == "" {
		panic("dashscope: API key is required")
	}

	cfg := &clientConfig{
		apiKey:       apiKey,
		asrURL:       DefaultRecognitionURL,
		ttsURL:       DefaultSynthesisURL,
		httpClient:   http.DefaultClient,
		startTimeout: DefaultStartTimeout,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	c := &Client{config: cfg}
	c.Recognition = &RecognitionService{client: c}
	c.Synthesis = &SynthesisService{client: c}
	return c
}

// WithWorkspace sets the workspace ID for resource isolation.
func WithWorkspace(workspaceID string) Option {
	return func(c *clientConfig) {
		c.workspaceID = workspaceID
	}
}

// WithRecognitionURL sets the ASR WebSocket endpoint.
func WithRecognitionURL(url string) Option {
	return func(c *clientConfig) {
		c.asrURL = url
	}
}

// WithSynthesisURL sets the TTS WebSocket endpoint.
func WithSynthesisURL(url string) Option {
	return func(c *clientConfig) {
		c.ttsURL = url
	}
}

// WithHTTPClient sets a custom HTTP client used for WebSocket handshakes.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithStartTimeout bounds how long Start and ConfigureSession wait for the
// upstream acknowledgement events.
func WithStartTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.startTimeout = d
	}
}

// authHeader builds the handshake headers shared by both services.
func (c *Client) authHeader() http.Header {
	h := http.Header{}
	h.Set("Authorization", "bearer "+c.config.apiKey)
	if c.config.workspaceID != "" {
		h.Set("X-DashScope-WorkSpace", c.config.workspaceID)
	}
	return h
}
