// Package store implements the durable Store: prompts, sessions, events,
// and compactions, backed by a single sqlite database. Every operation is
// transactional; reads observe all prior successful writes.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nullstream/agentcore/pkg/types"
)

// Store is the durable backing store for prompts, sessions, events, and
// compactions. A Store is safe for concurrent use; sqlite's own locking
// serializes writers, and WAL mode lets readers proceed without blocking.
type Store struct {
	db *DB
}

// New wraps an opened DB as a Store.
func New(db *DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutPrompt hashes template and upserts it, returning its stable prompt_id.
// Calling PutPrompt twice with the same template returns the same id.
func (s *Store) PutPrompt(ctx context.Context, template string) (string, error) {
	sum := sha256.Sum256([]byte(template))
	promptID := hex.EncodeToString(sum[:])[:32]

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (prompt_id, template, created_at)
		 VALUES (?, ?, unixepoch())
		 ON CONFLICT(prompt_id) DO NOTHING`,
		promptID, template,
	)
	if err != nil {
		return "", fmt.Errorf("%w: put_prompt: %v", ErrStorageUnavailable, err)
	}
	return promptID, nil
}

// CreateSession persists a new Session row. Returns ErrAlreadyExists if
// sessionID is already taken.
func (s *Store) CreateSession(ctx context.Context, sessionID, promptID string, promptArgs map[string]any, systemPrompt string, toolDefs []types.ToolDefinition, params types.RequestParams, model, workspace string) (*types.Session, error) {
	promptArgsJSON, err := json.Marshal(promptArgs)
	if err != nil {
		return nil, fmt.Errorf("marshal prompt_args: %w", err)
	}
	toolDefsJSON, err := json.Marshal(toolDefs)
	if err != nil {
		return nil, fmt.Errorf("marshal tool_definitions: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal request_params: %w", err)
	}

	now := nowUnix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, prompt_id, prompt_args, system_prompt, tool_definitions,
			request_params, model_identifier, workspace_path, mode, status,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, promptID, string(promptArgsJSON), systemPrompt, string(toolDefsJSON),
		string(paramsJSON), model, workspace, types.DefaultMode, string(types.SessionActive),
		now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: session %q", ErrAlreadyExists, sessionID)
		}
		return nil, fmt.Errorf("%w: create_session: %v", ErrStorageUnavailable, err)
	}

	log.Debug().Str("session_id", sessionID).Str("prompt_id", promptID).Msg("session created")

	return &types.Session{
		SessionID:            sessionID,
		PromptID:             promptID,
		PromptArgs:           promptArgs,
		RenderedSystemPrompt: systemPrompt,
		ToolDefinitions:      toolDefs,
		RequestParams:        params,
		ModelIdentifier:      model,
		WorkspacePath:        workspace,
		Mode:                 types.DefaultMode,
		Status:               types.SessionActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// LoadSession rehydrates a Session by id. Returns ErrNotFound if absent.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, prompt_id, prompt_args, system_prompt, tool_definitions,
			request_params, model_identifier, workspace_path, mode, status,
			created_at, updated_at, completed_at
		 FROM sessions WHERE session_id = ?`, sessionID)

	return scanSession(row)
}

func scanSession(row *sql.Row) (*types.Session, error) {
	var (
		sess                                     types.Session
		promptArgsJSON, toolDefsJSON, paramsJSON string
		status                                   string
		completedAt                              sql.NullInt64
	)

	err := row.Scan(&sess.SessionID, &sess.PromptID, &promptArgsJSON, &sess.RenderedSystemPrompt,
		&toolDefsJSON, &paramsJSON, &sess.ModelIdentifier, &sess.WorkspacePath, &sess.Mode,
		&status, &sess.CreatedAt, &sess.UpdatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load_session: %v", ErrStorageUnavailable, err)
	}

	sess.Status = types.SessionStatus(status)
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Int64
	}
	if err := json.Unmarshal([]byte(promptArgsJSON), &sess.PromptArgs); err != nil {
		return nil, fmt.Errorf("%w: unmarshal prompt_args: %v", ErrIntegrity, err)
	}
	if err := json.Unmarshal([]byte(toolDefsJSON), &sess.ToolDefinitions); err != nil {
		return nil, fmt.Errorf("%w: unmarshal tool_definitions: %v", ErrIntegrity, err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &sess.RequestParams); err != nil {
		return nil, fmt.Errorf("%w: unmarshal request_params: %v", ErrIntegrity, err)
	}
	return &sess, nil
}

// SetStatus updates a session's status (and completed_at when terminal).
func (s *Store) SetStatus(ctx context.Context, sessionID string, status types.SessionStatus) error {
	now := nowUnix()
	var completedAt any
	if status == types.SessionCompleted || status == types.SessionCancelled {
		completedAt = now
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ?, completed_at = COALESCE(?, completed_at)
		 WHERE session_id = ?`,
		string(status), now, completedAt, sessionID,
	)
	if err != nil {
		return fmt.Errorf("%w: set_status: %v", ErrStorageUnavailable, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns sessions matching filter, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, filter types.SessionFilter) ([]*types.Session, error) {
	query := `SELECT session_id, prompt_id, prompt_args, system_prompt, tool_definitions,
		request_params, model_identifier, workspace_path, mode, status,
		created_at, updated_at, completed_at FROM sessions WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.WorkspacePath != "" {
		query += " AND workspace_path = ?"
		args = append(args, filter.WorkspacePath)
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list_sessions: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		var (
			sess                                     types.Session
			promptArgsJSON, toolDefsJSON, paramsJSON string
			status                                   string
			completedAt                              sql.NullInt64
		)
		if err := rows.Scan(&sess.SessionID, &sess.PromptID, &promptArgsJSON, &sess.RenderedSystemPrompt,
			&toolDefsJSON, &paramsJSON, &sess.ModelIdentifier, &sess.WorkspacePath, &sess.Mode,
			&status, &sess.CreatedAt, &sess.UpdatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("%w: list_sessions scan: %v", ErrStorageUnavailable, err)
		}
		sess.Status = types.SessionStatus(status)
		if completedAt.Valid {
			sess.CompletedAt = &completedAt.Int64
		}
		_ = json.Unmarshal([]byte(promptArgsJSON), &sess.PromptArgs)
		_ = json.Unmarshal([]byte(toolDefsJSON), &sess.ToolDefinitions)
		_ = json.Unmarshal([]byte(paramsJSON), &sess.RequestParams)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "constraint failed")
}
