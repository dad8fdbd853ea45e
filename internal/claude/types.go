package claude

// EventType represents the type of a stream event.
type EventType string

const (
	// EventInit is sent at the start of a session.
	EventInit EventType = "init"
	// EventMessage contains assistant message content.
	EventMessage EventType = "message"
	// EventResult is sent at the end of a session with final status.
	EventResult EventType = "result"
	// EventError indicates an error occurred.
	EventError EventType = "error"
	// EventSystem is for system-level events.
	EventSystem EventType = "system"
)

// StreamEvent represents a parsed event from the CLI's stream-JSON output.
type StreamEvent struct {
	Type    EventType
	Raw     []byte // Original JSON line
	Init    *InitContent
	Message *MessageContent
	Result  *ResultContent
	Error   *ErrorContent
	System  *SystemContent
}

// InitContent contains initialization information for a session.
type InitContent struct {
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

// MessageContent contains the content of an assistant message.
type MessageContent struct {
	ID         string
	Role       string
	Model      string
	Text       string // Text blocks joined with newlines
	StopReason string
	Usage      Usage
}

// Usage contains token usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CacheRead    int `json:"cache_read_input_tokens"`
	CacheCreate  int `json:"cache_creation_input_tokens"`
}

// ResultContent contains the final result of a session.
type ResultContent struct {
	SessionID  string
	CostUSD    float64
	DurationMS int64
	IsError    bool
	Usage      Usage
	Result     string
}

// ErrorContent contains error information.
type ErrorContent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SystemContent contains system-level event information.
type SystemContent struct {
	SubType string
	Model   string
}

// rawEvent is used for initial JSON parsing to determine event type.
type rawEvent struct {
	Type    string `json:"type"`
	SubType string `json:"subtype"`

	SessionID string `json:"session_id"`
	Model     string `json:"model"`

	Message *rawMessage `json:"message"`

	// Result event fields
	CostUSD      float64 `json:"cost_usd"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	DurationMS   int64   `json:"duration_ms"`
	IsError      bool    `json:"is_error"`
	Usage        *Usage  `json:"usage"`
	Result       string  `json:"result"`

	Error *ErrorContent `json:"error"`
}

// rawMessage represents the message object in the CLI's output.
type rawMessage struct {
	ID         string       `json:"id"`
	Role       string       `json:"role"`
	Model      string       `json:"model"`
	StopReason string       `json:"stop_reason"`
	Usage      Usage        `json:"usage"`
	Content    []rawContent `json:"content"`
}

// rawContent represents a content block within a message.
type rawContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// userInput is one line of stream-JSON input carrying the prompt.
type userInput struct {
	Type    string   `json:"type"`
	Message userTurn `json:"message"`
}

type userTurn struct {
	Role    string         `json:"role"`
	Content []inputContent `json:"content"`
}

type inputContent struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}
