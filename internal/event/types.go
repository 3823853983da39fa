package event

import "github.com/nullstream/agentcore/pkg/types"

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	Info *types.Session `json:"info"`
}

// SessionUpdatedData is the data for session.updated events.
type SessionUpdatedData struct {
	Info *types.Session `json:"info"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	Info *types.Session `json:"info"`
}

// SessionIdleData is the data for session.idle events.
type SessionIdleData struct {
	SessionID string `json:"sessionID"`
}

// SessionErrorData is the data for session.error events.
type SessionErrorData struct {
	SessionID string `json:"sessionID,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// SessionUpdateData wraps one protocol-level streaming update (spec §6)
// for delivery over the bus before the Protocol Adapter forwards it as a
// JSON-RPC notification.
type SessionUpdateData struct {
	Update types.Update `json:"update"`
}

// EventAppendedData is the data for event.appended: one Event was durably
// written to a session's history.
type EventAppendedData struct {
	SessionID string      `json:"sessionID"`
	Event     types.Event `json:"event"`
}

// CompactionData is the data for session.compacted events.
type CompactionData struct {
	SessionID string                `json:"sessionID"`
	Event     *types.CompactionEvent `json:"event"`
}

// FileEditedData is the data for file.edited events.
type FileEditedData struct {
	File string `json:"file"`
}

// PermissionUpdatedData is the data for permission.required events.
type PermissionUpdatedData struct {
	ID             string   `json:"id"`
	SessionID      string   `json:"sessionID"`
	PermissionType string   `json:"permissionType"` // "bash" | "edit" | "external_directory"
	Pattern        []string `json:"pattern"`
	Title          string   `json:"title"`
}

// PermissionRepliedData is the data for permission.resolved events.
type PermissionRepliedData struct {
	PermissionID string `json:"permissionID"`
	SessionID    string `json:"sessionID"`
	Response     string `json:"response"` // "once" | "always" | "reject"
}
