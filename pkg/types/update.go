package types

// UpdateKind is the closed set of streaming session-update notification
// kinds the Protocol Adapter emits during prompt (spec §6).
type UpdateKind string

const (
	UpdateAgentThoughtDelta UpdateKind = "agent_thought_delta"
	UpdateAgentMessageDelta UpdateKind = "agent_message_delta"
	UpdateToolCallStart     UpdateKind = "tool_call_start"
	UpdateToolCallUpdate    UpdateKind = "tool_call_update"
	UpdateCurrentModeUpdate UpdateKind = "current_mode_update"
	UpdatePlanUpdate        UpdateKind = "plan_update"
)

// ToolCallKind classifies a tool call for client-side rendering.
type ToolCallKind string

const (
	ToolKindRead    ToolCallKind = "read"
	ToolKindEdit    ToolCallKind = "edit"
	ToolKindExecute ToolCallKind = "execute"
	ToolKindSearch  ToolCallKind = "search"
	ToolKindMove    ToolCallKind = "move"
	ToolKindDelete  ToolCallKind = "delete"
	ToolKindOther   ToolCallKind = "other"
)

// ToolCallStatus is the lifecycle of one tool call as advertised to the
// client.
type ToolCallStatus string

const (
	ToolCallPending    ToolCallStatus = "pending"
	ToolCallInProgress ToolCallStatus = "in_progress"
	ToolCallCompleted  ToolCallStatus = "completed"
	ToolCallFailed     ToolCallStatus = "failed"
)

// Update is one protocol-level, session-scoped notification the ReAct
// Engine yields and the Protocol Adapter forwards to the client as a
// JSON-RPC notification. Exactly the fields relevant to Kind are populated.
type Update struct {
	Kind      UpdateKind `json:"kind"`
	SessionID string     `json:"sessionID"`

	// AgentThoughtDelta / AgentMessageDelta
	Text string `json:"text,omitempty"`

	// ToolCallStart / ToolCallUpdate
	ToolCallID   string         `json:"toolCallID,omitempty"`
	Title        string         `json:"title,omitempty"`
	ToolKind     ToolCallKind   `json:"toolKind,omitempty"`
	InitialArgs  map[string]any `json:"initialArgs,omitempty"`
	Status       ToolCallStatus `json:"status,omitempty"`
	Content      string         `json:"content,omitempty"`
	Diff         *StructuredDiff `json:"diff,omitempty"`
	RawOutput    map[string]any `json:"rawOutput,omitempty"`

	// CurrentModeUpdate
	Mode string `json:"mode,omitempty"`

	// PlanUpdate
	Plan []PlanStep `json:"plan,omitempty"`
}

// PlanStep is one entry of an optional plan_update notification.
type PlanStep struct {
	Content string `json:"content"`
	Status  string `json:"status"` // "pending" | "in_progress" | "completed"
}

// StopReason is the closed set of reasons a prompt turn loop can end with.
type StopReason string

const (
	StopEndTurn         StopReason = "end_turn"
	StopCancelled       StopReason = "cancelled"
	StopMaxTurnsReached StopReason = "max_turns_reached"
	StopError           StopReason = "error"
)
