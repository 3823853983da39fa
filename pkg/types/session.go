package types

// SessionStatus is the closed set of lifecycle states for a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// RequestParams are the per-session generation and compaction knobs. Zero
// values for the compaction fields mean "use the configured default".
type RequestParams struct {
	Temperature         *float64 `json:"temperature,omitempty"`
	TopP                *float64 `json:"topP,omitempty"`
	MaxTokens           int      `json:"maxTokens,omitempty"`
	ReserveTokens       int      `json:"reserveTokens,omitempty"`
	CompactionThreshold int      `json:"compactionThreshold,omitempty"`
	CompactionKeepHead  int      `json:"compactionKeepHead,omitempty"`
	CompactionKeepTail  int      `json:"compactionKeepTail,omitempty"`
}

// ToolDefinition is a provider-native tool descriptor: name, description, and
// a JSON-schema for its input, exactly as advertised by a tools/list call
// against a tool-protocol server.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Session is one logical conversation. SessionID is opaque, chosen at
// creation, and never reused or renamed -- not even across compaction.
type Session struct {
	SessionID            string           `json:"sessionID"`
	PromptID              string           `json:"promptID"`
	PromptArgs            map[string]any   `json:"promptArgs,omitempty"`
	RenderedSystemPrompt  string           `json:"renderedSystemPrompt"`
	ToolDefinitions       []ToolDefinition `json:"toolDefinitions,omitempty"`
	RequestParams         RequestParams    `json:"requestParams"`
	ModelIdentifier       string           `json:"modelIdentifier"`
	WorkspacePath         string           `json:"workspacePath"`
	Mode                  string           `json:"mode"`
	Status                SessionStatus    `json:"status"`
	CreatedAt             int64            `json:"createdAt"`
	UpdatedAt             int64            `json:"updatedAt"`
	CompletedAt           *int64           `json:"completedAt,omitempty"`
}

// DefaultMode is the mode a Session is created with unless overridden.
const DefaultMode = "default"

// SessionFilter narrows list_sessions; a zero-value filter matches everything.
type SessionFilter struct {
	Status        SessionStatus
	WorkspacePath string
}
