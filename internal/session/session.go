// Package session provides the in-memory working copy of a conversation
// the ReAct Engine drives during a turn: it wraps the durable Store and
// converts between its Event history and provider-native chat messages.
package session

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/nullstream/agentcore/internal/provider"
	"github.com/nullstream/agentcore/internal/store"
	"github.com/nullstream/agentcore/pkg/types"
)

// Session is the in-memory working copy used by the engine during a turn.
// It is a thin, stateless-beyond-its-snapshot wrapper around the Store --
// every mutating call round-trips through the Store before returning, so a
// Session is always truthful up to its last flushed Event.
type Session struct {
	store *store.Store
	info  *types.Session

	// alwaysOn holds the currently active "always-on" skill prompt blocks,
	// set by the skills_injector pre-request hook. They are never persisted
	// as Events; Store.GetMessages re-synthesizes them on every read.
	alwaysOn []string
}

// New creates and persists a brand-new Session.
func New(ctx context.Context, s *store.Store, sessionID, promptID string, promptArgs map[string]any, systemPrompt string, toolDefs []types.ToolDefinition, params types.RequestParams, model, workspace string) (*Session, error) {
	info, err := s.CreateSession(ctx, sessionID, promptID, promptArgs, systemPrompt, toolDefs, params, model, workspace)
	if err != nil {
		return nil, err
	}
	return &Session{store: s, info: info}, nil
}

// Load rehydrates a Session from the Store.
func Load(ctx context.Context, s *store.Store, sessionID string) (*Session, error) {
	info, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Session{store: s, info: info}, nil
}

// Info returns the underlying persisted Session record.
func (sess *Session) Info() *types.Session {
	return sess.info
}

// SetAlwaysOnSkills replaces the set of always-on skill prompt blocks
// injected ahead of every provider request. Called by the skills_injector
// pre-request hook.
func (sess *Session) SetAlwaysOnSkills(blocks []string) {
	sess.alwaysOn = blocks
}

// SetMode updates the session's active mode.
func (sess *Session) SetMode(mode string) {
	sess.info.Mode = mode
}

// AddUserMessage appends a user event via the Store.
func (sess *Session) AddUserMessage(ctx context.Context, text string) error {
	_, err := sess.store.AppendEvent(ctx, sess.info.SessionID, store.EventFields{
		Role:    types.RoleUser,
		Content: &text,
	})
	return err
}

// AddContextMessage appends a user-role event carrying injected context
// (e.g. an activated skill's instructions), per §4.8's "Context: ..."
// convention.
func (sess *Session) AddContextMessage(ctx context.Context, text string) error {
	prefixed := "Context: " + text
	return sess.AddUserMessage(ctx, prefixed)
}

// AddAssistantResponse writes the events for one completed (or
// cancelled-partial) turn, each appended atomically on its own: at most one
// content/reasoning assistant event (an empty one when there are no tool
// calls or results either), one assistant event per finalized tool call,
// and one tool event per result.
// Idempotent on retry for a given (tool_call_id, content) pair: a tool
// event already present with matching content is not re-appended.
func (sess *Session) AddAssistantResponse(ctx context.Context, reasoning, content string, toolCalls []types.ToolCallInput, results []types.ToolResult) error {
	sessionID := sess.info.SessionID

	if reasoning != "" || content != "" || (len(toolCalls) == 0 && len(results) == 0) {
		fields := store.EventFields{Role: types.RoleAssistant}
		if content != "" {
			fields.Content = &content
		}
		if reasoning != "" {
			fields.ReasoningContent = &reasoning
		}
		if _, err := sess.store.AppendEvent(ctx, sessionID, fields); err != nil {
			return fmt.Errorf("append assistant content event: %w", err)
		}
	}

	for _, tc := range toolCalls {
		id, name := tc.ID, tc.Name
		fields := store.EventFields{
			Role:         types.RoleAssistant,
			ToolCallID:   &id,
			ToolCallName: &name,
		}
		if tc.ParseError == nil {
			fields.ToolArguments = tc.Arguments
		}
		if _, err := sess.store.AppendEvent(ctx, sessionID, fields); err != nil {
			return fmt.Errorf("append assistant tool_call event for %s: %w", id, err)
		}
	}

	existing, err := sess.seenToolResults(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		if existing[toolResultKey(r.ToolCallID, r.Content)] {
			continue
		}
		toolCallID := r.ToolCallID
		textContent := r.Content
		fields := store.EventFields{
			Role:       types.RoleTool,
			ToolCallID: &toolCallID,
			Content:    &textContent,
		}
		if r.Diff != nil || r.RawOutput != nil {
			meta := map[string]any{}
			if r.Diff != nil {
				meta["diff"] = r.Diff
			}
			if r.RawOutput != nil {
				meta["rawOutput"] = r.RawOutput
			}
			if r.IsError {
				meta["isError"] = true
			}
			fields.Metadata = meta
		}
		if _, err := sess.store.AppendEvent(ctx, sessionID, fields); err != nil {
			return fmt.Errorf("append tool result event for %s: %w", toolCallID, err)
		}
	}

	return nil
}

func toolResultKey(toolCallID, content string) string {
	return toolCallID + "\x00" + content
}

func (sess *Session) seenToolResults(ctx context.Context) (map[string]bool, error) {
	events, err := sess.store.ListEvents(ctx, sess.info.SessionID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, ev := range events {
		if ev.Role != types.RoleTool || ev.ToolCallID == nil || ev.Content == nil {
			continue
		}
		seen[toolResultKey(*ev.ToolCallID, *ev.Content)] = true
	}
	return seen, nil
}

// AsProviderMessages is equivalent to Store.get_messages: the session's
// full logical history (system prompt, always-on skill injections, event
// history) mapped to provider-native chat messages.
func (sess *Session) AsProviderMessages(ctx context.Context) ([]*schema.Message, error) {
	events, err := sess.store.GetMessages(ctx, sess.info.SessionID, sess.alwaysOn)
	if err != nil {
		return nil, err
	}
	return provider.ConvertEvents(events), nil
}

// Events returns the session's current logical Event history without
// provider-native conversion (system prompt and always-on injections
// included as synthetic, ID-0 rows).
func (sess *Session) Events(ctx context.Context) ([]types.Event, error) {
	return sess.store.GetMessages(ctx, sess.info.SessionID, sess.alwaysOn)
}

// RawEvents returns only the persisted event rows for the session, with
// real, addressable conv_index values -- no synthetic system prompt or
// skill injection prepended. Compaction partitions and records against
// this view.
func (sess *Session) RawEvents(ctx context.Context) ([]types.Event, error) {
	return sess.store.ListEvents(ctx, sess.info.SessionID)
}

// TokenTotal sums total_tokens across the session's persisted events.
// Events removed by compaction no longer count; the kept head and tail
// events still do, and compaction's summary event carries no usage.
func (sess *Session) TokenTotal(ctx context.Context) (int, error) {
	events, err := sess.store.ListEvents(ctx, sess.info.SessionID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, ev := range events {
		if ev.TotalTokens != nil {
			total += *ev.TotalTokens
		}
	}
	return total, nil
}

// SetStatus updates the session's lifecycle status in the Store and the
// in-memory snapshot.
func (sess *Session) SetStatus(ctx context.Context, status types.SessionStatus) error {
	if err := sess.store.SetStatus(ctx, sess.info.SessionID, status); err != nil {
		return err
	}
	sess.info.Status = status
	return nil
}

// Replace swaps the in-memory snapshot for one produced by compaction (or
// any other component that mutates Session state out-of-band). The
// session_id is never changed.
func (sess *Session) Replace(info *types.Session) {
	sess.info = info
}

// Store exposes the underlying Store for components (Compaction, Skill
// Registry) that need direct access beyond the Session's own operations.
func (sess *Session) Store() *store.Store {
	return sess.store
}
