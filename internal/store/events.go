package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nullstream/agentcore/pkg/types"
)

// EventFields are the caller-supplied fields for AppendEvent; ID and
// ConvIndex are assigned by the Store.
type EventFields struct {
	Role             types.EventRole
	Content          *string
	ReasoningContent *string
	ToolCallID       *string
	ToolCallName     *string
	ToolArguments    map[string]any
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	Metadata         map[string]any
}

// AppendEvent atomically assigns the next conv_index for sessionID and
// inserts the event.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, fields EventFields) (int64, error) {
	var eventID int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var nextIndex int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(conv_index), -1) + 1 FROM events WHERE session_id = ?`, sessionID,
		).Scan(&nextIndex)
		if err != nil {
			return fmt.Errorf("next conv_index: %w", err)
		}

		toolArgsJSON, err := marshalNullable(fields.ToolArguments)
		if err != nil {
			return err
		}
		metaJSON, err := marshalNullable(fields.Metadata)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (session_id, conv_index, timestamp, role, content,
				reasoning_content, tool_call_id, tool_call_name, tool_arguments,
				prompt_tokens, completion_tokens, total_tokens, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, nextIndex, nowUnix(), string(fields.Role), fields.Content,
			fields.ReasoningContent, fields.ToolCallID, fields.ToolCallName, toolArgsJSON,
			fields.PromptTokens, fields.CompletionTokens, fields.TotalTokens, metaJSON,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		eventID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: append_event: %v", ErrStorageUnavailable, err)
	}
	return eventID, nil
}

// GetMessages reconstructs the current logical history for sessionID: the
// rendered system prompt, any caller-supplied always-on skill injections,
// then all events since the last compaction's cutoff, in conv_index order.
// Compaction splices out the middle range in record_compaction itself, so a
// plain ordered scan of events already honors the most recent compaction.
// The system prompt and injections are synthesized as system-role Events
// with ID 0 -- they are never persisted, so reconstructing them is cheap
// and always reflects the session's current prompt_args.
func (s *Store) GetMessages(ctx context.Context, sessionID string, alwaysOnInjections []string) ([]types.Event, error) {
	var systemPrompt string
	err := s.db.QueryRowContext(ctx,
		`SELECT system_prompt FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&systemPrompt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get_messages: %v", ErrStorageUnavailable, err)
	}

	var out []types.Event
	if systemPrompt != "" {
		out = append(out, types.Event{Role: types.RoleSystem, Content: &systemPrompt})
	}
	for i := range alwaysOnInjections {
		out = append(out, types.Event{Role: types.RoleSystem, Content: &alwaysOnInjections[i]})
	}

	events, err := s.ListEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return append(out, events...), nil
}

// ListEvents returns the real, persisted rows for sessionID in conv_index
// order -- no synthetic system prompt or skill injection prepended. Callers
// that need addressable conv_index values (Compaction's head/tail
// partition and its RecordCompaction call) use this instead of
// GetMessages.
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]types.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, conv_index, timestamp, role, content, reasoning_content,
			tool_call_id, tool_call_name, tool_arguments, prompt_tokens, completion_tokens,
			total_tokens, metadata
		 FROM events WHERE session_id = ? ORDER BY conv_index ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: list_events: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(rs rowScanner) (types.Event, error) {
	var (
		ev                                    types.Event
		role                                  string
		toolArgsJSON, metaJSON                sql.NullString
	)
	if err := rs.Scan(&ev.ID, &ev.SessionID, &ev.ConvIndex, &ev.Timestamp, &role,
		&ev.Content, &ev.ReasoningContent, &ev.ToolCallID, &ev.ToolCallName, &toolArgsJSON,
		&ev.PromptTokens, &ev.CompletionTokens, &ev.TotalTokens, &metaJSON); err != nil {
		return ev, fmt.Errorf("%w: scan event: %v", ErrStorageUnavailable, err)
	}
	ev.Role = types.EventRole(role)
	if toolArgsJSON.Valid && toolArgsJSON.String != "" {
		if err := json.Unmarshal([]byte(toolArgsJSON.String), &ev.ToolArguments); err != nil {
			return ev, fmt.Errorf("%w: unmarshal tool_arguments: %v", ErrIntegrity, err)
		}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &ev.Metadata); err != nil {
			return ev, fmt.Errorf("%w: unmarshal metadata: %v", ErrIntegrity, err)
		}
	}
	return ev, nil
}

func marshalNullable(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return string(b), nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
