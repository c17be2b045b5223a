package dashscope

// Models used by the realtime speech services.
const (
	// ModelParaformerRealtimeV2 is the streaming recognition model.
	ModelParaformerRealtimeV2 = "paraformer-realtime-v2"
	// ModelQwenTTSRealtime is the streaming synthesis model.
	ModelQwenTTSRealtime = "qwen-tts-realtime"
)

// Audio formats accepted by the recognition task protocol.
const (
	AudioFormatPCM  = "pcm"
	AudioFormatWAV  = "wav"
	AudioFormatOpus = "opus"
)

// Voices for synthesis output.
const (
	VoiceChelsie = "Chelsie"
	VoiceCherry  = "Cherry"
	VoiceSerena  = "Serena"
	VoiceEthan   = "Ethan"
)

// Synthesis commit modes.
const (
	// ModeServerCommit lets the upstream decide when appended text is
	// committed for synthesis.
	ModeServerCommit = "server_commit"
	// ModeCommit requires an explicit commit from the caller.
	ModeCommit = "commit"
)

// SynthesisSampleRate is the output sample rate dictated by the upstream.
// Synthesized audio is 16-bit little-endian mono PCM at this rate.
const SynthesisSampleRate = 24000

// LinkState is the protocol state of one upstream link.
type LinkState int

const (
	StateConnecting LinkState = iota
	StateTaskStarted
	StateStreaming
	StateFinishing
	StateSessionCreated
	StateSessionUpdated
	StateSynthesizing
	StateFinished
	StateFailed
)

// String returns the state name.
func (s LinkState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateTaskStarted:
		return "task_started"
	case StateStreaming:
		return "streaming"
	case StateFinishing:
		return "finishing"
	case StateSessionCreated:
		return "session_created"
	case StateSessionUpdated:
		return "session_updated"
	case StateSynthesizing:
		return "synthesizing"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further protocol activity is possible.
func (s LinkState) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

// TaskConfig configures one recognition task.
//
// The VAD parameters (MaxSentenceSilence, SemanticPunctuation) are passed
// through to the upstream opaquely; silence and sentence segmentation are
// decided entirely by the cloud service.
type TaskConfig struct {
	// Model is the recognition model. Default: paraformer-realtime-v2.
	Model string `json:"model,omitempty"`

	// Format is the input audio format. Default: pcm.
	Format string `json:"format,omitempty"`

	// SampleRate is the input sample rate in Hz. Default: 16000.
	SampleRate int `json:"sample_rate,omitempty"`

	// MaxSentenceSilence is the upstream VAD silence threshold in ms.
	MaxSentenceSilence int `json:"max_sentence_silence,omitempty"`

	// SemanticPunctuation enables semantic sentence segmentation upstream.
	SemanticPunctuation bool `json:"semantic_punctuation_enabled,omitempty"`

	// VocabularyID selects a hotword vocabulary.
	VocabularyID string `json:"vocabulary_id,omitempty"`

	// LanguageHints hints the spoken languages, e.g. ["zh", "en"].
	LanguageHints []string `json:"language_hints,omitempty"`
}

// SessionConfig configures one synthesis session.
type SessionConfig struct {
	// Voice overrides the voice given to Connect.
	Voice string `json:"voice,omitempty"`

	// ResponseFormat is the output audio format. Default: pcm.
	ResponseFormat string `json:"response_format,omitempty"`

	// SampleRate is the output sample rate. Default: 24000.
	SampleRate int `json:"sample_rate,omitempty"`

	// Mode is the text commit mode. Default: server_commit.
	Mode string `json:"mode,omitempty"`
}

// RecognitionResult is one recognized sentence fragment.
//
// Results form a finite ordered sequence per task. SentenceEnd marks a
// sentence boundary detected by the upstream VAD, allowing the caller to
// segment a conversation turn.
type RecognitionResult struct {
	Text        string `json:"text"`
	BeginTimeMs int64  `json:"begin_time"`
	EndTimeMs   int64  `json:"end_time"`
	SentenceEnd bool   `json:"sentence_end"`
}
