package gateway

// Client-facing JSON events for the recognition endpoint.

type taskStartedEvent struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
}

type resultEvent struct {
	Event       string `json:"event"`
	Text        string `json:"text"`
	BeginTime   int64  `json:"begin_time"`
	EndTime     int64  `json:"end_time"`
	SentenceEnd bool   `json:"sentence_end"`
}

type sentenceEndEvent struct {
	Event string `json:"event"`
	Text  string `json:"text"`
}

type taskFinishedEvent struct {
	Event string `json:"event"`
}

// errorFrame is the single terminal error shape of the recognition
// endpoint.
type errorFrame struct {
	Error string `json:"error"`
}

// Client-facing JSON events for the synthesis endpoint.

type ttsEvent struct {
	Event   string `json:"event"`
	Message string `json:"message,omitempty"`
}

// ttsRequest is the first client message on the synthesis endpoint.
type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// asrControl is an optional text control message on the recognition
// endpoint; audio travels as binary frames.
type asrControl struct {
	Action string `json:"action"`
}
