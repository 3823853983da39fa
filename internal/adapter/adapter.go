// Package adapter implements the Protocol Adapter (§4.9): the JSON-RPC
// 2.0 surface the client protocol speaks, bridging its method calls to
// the Store, Session, and ReAct Engine.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/nullstream/agentcore/internal/hook"
	"github.com/nullstream/agentcore/internal/mcp"
	"github.com/nullstream/agentcore/internal/provider"
	"github.com/nullstream/agentcore/internal/react"
	"github.com/nullstream/agentcore/internal/session"
	"github.com/nullstream/agentcore/internal/store"
	"github.com/nullstream/agentcore/internal/tool"
	"github.com/nullstream/agentcore/pkg/types"
)

// Adapter is a jsonrpc2.Handler implementing the §4.9 method set. One
// Adapter serves every session opened over its connection; each session
// owns its own cancellation signal and tool-protocol client, per §5's
// shared-resource policy.
type Adapter struct {
	Store    *store.Store
	Provider provider.Provider
	Hooks    *hook.Pipeline
	MaxTurns int

	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	promptMu sync.Mutex // FIFO-serializes concurrent prompt calls on one session (spec §5)

	sess      *session.Session
	local     *tool.Registry
	mcpClient *mcp.Client

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// New constructs an Adapter. maxTurns is forwarded to every react.Engine
// it builds; 0 selects the Engine's own large default.
func New(s *store.Store, p provider.Provider, hooks *hook.Pipeline, maxTurns int) *Adapter {
	return &Adapter{
		Store:    s,
		Provider: p,
		Hooks:    hooks,
		MaxTurns: maxTurns,
		sessions: make(map[string]*sessionState),
	}
}

// Handle implements jsonrpc2.Handler.
func (a *Adapter) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	result, err := a.dispatch(ctx, conn, req)
	if req.Notif {
		if err != nil {
			log.Warn().Err(err).Str("method", req.Method).Msg("adapter: notification handling failed")
		}
		return
	}
	if err != nil {
		_ = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()})
		return
	}
	if replyErr := conn.Reply(ctx, req.ID, result); replyErr != nil {
		log.Warn().Err(replyErr).Str("method", req.Method).Msg("adapter: reply failed")
	}
}

func (a *Adapter) dispatch(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "initialize":
		return a.initialize(req)
	case "new_session":
		return a.newSession(ctx, req)
	case "load_session":
		return a.loadSession(ctx, conn, req)
	case "prompt":
		return a.prompt(ctx, conn, req)
	case "cancel":
		return a.cancel(req)
	case "list_sessions":
		return a.listSessions(ctx)
	case "set_session_mode":
		return a.setSessionMode(ctx, req)
	case "set_session_model":
		return a.setSessionModel(ctx, req)
	case "set_session_config_option":
		return a.setSessionConfigOption(ctx, req)
	default:
		return nil, fmt.Errorf("adapter: unknown method %q", req.Method)
	}
}

func decodeParams[T any](req *jsonrpc2.Request) (T, error) {
	var p T
	if req.Params == nil {
		return p, nil
	}
	if err := json.Unmarshal(*req.Params, &p); err != nil {
		return p, fmt.Errorf("adapter: invalid params for %s: %w", req.Method, err)
	}
	return p, nil
}

// --- initialize ---

type InitializeParams struct {
	ProtocolVersion    string         `json:"protocolVersion"`
	ClientCapabilities map[string]any `json:"clientCapabilities,omitempty"`
	ClientInfo         map[string]any `json:"clientInfo,omitempty"`
}

type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
}

type Capabilities struct {
	LoadSession            bool     `json:"loadSession"`
	ListSessions           bool     `json:"listSessions"`
	PromptMediaTypes       []string `json:"promptMediaTypes"`
	ToolProtocolTransports []string `json:"toolProtocolTransports"`
}

func (a *Adapter) initialize(req *jsonrpc2.Request) (any, error) {
	if _, err := decodeParams[InitializeParams](req); err != nil {
		return nil, err
	}
	return InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: Capabilities{
			LoadSession:            true,
			ListSessions:           true,
			PromptMediaTypes:       []string{"text", "image", "resource"},
			ToolProtocolTransports: []string{"stdio", "http", "sse"},
		},
	}, nil
}

// --- new_session ---

type ToolServerSpec struct {
	Type        string            `json:"type"` // stdio | http | sse
	Command     []string          `json:"command,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

type NewSessionParams struct {
	Workspace   string           `json:"workspace"`
	ToolServers []ToolServerSpec `json:"toolServers,omitempty"`
	Options     map[string]any   `json:"options,omitempty"`
}

type NewSessionResult struct {
	SessionID string   `json:"sessionID"`
	Modes     []string `json:"modes"`
}

func (a *Adapter) newSession(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	p, err := decodeParams[NewSessionParams](req)
	if err != nil {
		return nil, err
	}

	local, mcpClient, err := resolveToolServers(ctx, p.Workspace, p.ToolServers)
	if err != nil {
		return nil, fmt.Errorf("adapter: resolve tool servers: %w", err)
	}
	toolDefs := mergeToolDefinitions(local, mcpClient)

	systemPrompt, _ := p.Options["systemPrompt"].(string)
	modelID, _ := p.Options["model"].(string)
	if modelID == "" {
		models := a.Provider.Models()
		if len(models) > 0 {
			modelID = models[0].ID
		}
	}

	promptID, err := a.Store.PutPrompt(ctx, systemPrompt)
	if err != nil {
		return nil, err
	}

	sessionID := ulid.Make().String()
	sess, err := session.New(ctx, a.Store, sessionID, promptID, nil, systemPrompt, toolDefs, types.RequestParams{}, modelID, p.Workspace)
	if err != nil {
		return nil, fmt.Errorf("adapter: create session: %w", err)
	}

	a.mu.Lock()
	a.sessions[sessionID] = &sessionState{sess: sess, local: local, mcpClient: mcpClient}
	a.mu.Unlock()

	return NewSessionResult{SessionID: sessionID, Modes: []string{types.DefaultMode}}, nil
}

// --- load_session ---

type LoadSessionParams struct {
	SessionID   string           `json:"sessionID"`
	Workspace   string           `json:"workspace"`
	ToolServers []ToolServerSpec `json:"toolServers,omitempty"`
}

type LoadSessionResult struct {
	SessionID string `json:"sessionID"`
}

func (a *Adapter) loadSession(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	p, err := decodeParams[LoadSessionParams](req)
	if err != nil {
		return nil, err
	}

	sess, err := session.Load(ctx, a.Store, p.SessionID)
	if err != nil {
		return nil, fmt.Errorf("adapter: load_session %s: %w", p.SessionID, err)
	}

	local, mcpClient, err := resolveToolServers(ctx, p.Workspace, p.ToolServers)
	if err != nil {
		return nil, fmt.Errorf("adapter: resolve tool servers: %w", err)
	}

	a.mu.Lock()
	a.sessions[p.SessionID] = &sessionState{sess: sess, local: local, mcpClient: mcpClient}
	a.mu.Unlock()

	if err := replayTranscript(ctx, conn, sess); err != nil {
		return nil, fmt.Errorf("adapter: replay transcript: %w", err)
	}

	return LoadSessionResult{SessionID: p.SessionID}, nil
}

// replayTranscript sends every persisted event in sess as streaming
// session-update notifications, so the client sees the full history
// before load_session returns.
func replayTranscript(ctx context.Context, conn *jsonrpc2.Conn, sess *session.Session) error {
	events, err := sess.RawEvents(ctx)
	if err != nil {
		return err
	}
	sessionID := sess.Info().SessionID
	for _, ev := range events {
		update, ok := eventToUpdate(sessionID, ev)
		if !ok {
			continue
		}
		if err := conn.Notify(ctx, "session/update", update); err != nil {
			return err
		}
	}
	return nil
}

func eventToUpdate(sessionID string, ev types.Event) (types.Update, bool) {
	switch ev.Role {
	case types.RoleAssistant:
		if ev.Content != nil && *ev.Content != "" {
			return types.Update{Kind: types.UpdateAgentMessageDelta, SessionID: sessionID, Text: *ev.Content}, true
		}
		if ev.ReasoningContent != nil && *ev.ReasoningContent != "" {
			return types.Update{Kind: types.UpdateAgentThoughtDelta, SessionID: sessionID, Text: *ev.ReasoningContent}, true
		}
		if ev.ToolCallID != nil {
			name := ""
			if ev.ToolCallName != nil {
				name = *ev.ToolCallName
			}
			return types.Update{Kind: types.UpdateToolCallStart, SessionID: sessionID, ToolCallID: *ev.ToolCallID, Title: name, InitialArgs: ev.ToolArguments, Status: types.ToolCallCompleted}, true
		}
	case types.RoleTool:
		if ev.ToolCallID != nil {
			content := ""
			if ev.Content != nil {
				content = *ev.Content
			}
			return types.Update{Kind: types.UpdateToolCallUpdate, SessionID: sessionID, ToolCallID: *ev.ToolCallID, Status: types.ToolCallCompleted, Content: content}, true
		}
	}
	return types.Update{}, false
}

// --- prompt ---

type PromptBlock struct {
	Type string `json:"type"` // text | image | resource
	Text string `json:"text,omitempty"`
	URI  string `json:"uri,omitempty"`
}

type PromptParams struct {
	SessionID string        `json:"sessionID"`
	Blocks    []PromptBlock `json:"blocks"`
}

type PromptResult struct {
	StopReason types.StopReason `json:"stopReason"`
}

func (a *Adapter) prompt(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	p, err := decodeParams[PromptParams](req)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	st, ok := a.sessions[p.SessionID]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("adapter: unknown session %q", p.SessionID)
	}

	st.promptMu.Lock()
	defer st.promptMu.Unlock()

	turnCtx, cancel := context.WithCancel(ctx)
	st.cancelMu.Lock()
	st.cancel = cancel
	st.cancelMu.Unlock()
	defer cancel()

	engine := &react.Engine{
		Provider:   a.Provider,
		Dispatcher: &react.Dispatcher{Local: st.local, MCP: st.mcpClient},
		Hooks:      a.Hooks,
		MaxTurns:   a.MaxTurns,
	}

	emit := func(u types.Update) {
		if err := conn.Notify(ctx, "session/update", u); err != nil {
			log.Warn().Err(err).Str("sessionID", p.SessionID).Msg("adapter: notify failed")
		}
	}

	updated, reason, err := engine.Run(turnCtx, st.sess, renderBlocks(p.Blocks), emit)
	a.mu.Lock()
	st.sess = updated
	a.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("adapter: prompt: %w", err)
	}
	return PromptResult{StopReason: reason}, nil
}

func renderBlocks(blocks []PromptBlock) string {
	var out string
	for _, b := range blocks {
		switch b.Type {
		case "text", "":
			out += b.Text
		case "image":
			out += "[image attachment]"
		case "resource":
			out += fmt.Sprintf("[embedded resource: %s]", b.URI)
		}
	}
	return out
}

// --- cancel ---

type CancelParams struct {
	SessionID string `json:"sessionID"`
}

func (a *Adapter) cancel(req *jsonrpc2.Request) (any, error) {
	p, err := decodeParams[CancelParams](req)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	st, ok := a.sessions[p.SessionID]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("adapter: unknown session %q", p.SessionID)
	}

	st.cancelMu.Lock()
	if st.cancel != nil {
		st.cancel()
	}
	st.cancelMu.Unlock()
	return struct{}{}, nil
}

// --- optional methods ---

func (a *Adapter) listSessions(ctx context.Context) (any, error) {
	sessions, err := a.Store.ListSessions(ctx, types.SessionFilter{})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

type SetSessionModeParams struct {
	SessionID string `json:"sessionID"`
	ModeID    string `json:"modeID"`
}

func (a *Adapter) setSessionMode(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	p, err := decodeParams[SetSessionModeParams](req)
	if err != nil {
		return nil, err
	}
	st, err := a.mustSession(p.SessionID)
	if err != nil {
		return nil, err
	}
	st.sess.SetMode(p.ModeID)
	return struct{}{}, nil
}

type SetSessionModelParams struct {
	SessionID string `json:"sessionID"`
	Model     string `json:"model"`
}

func (a *Adapter) setSessionModel(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	p, err := decodeParams[SetSessionModelParams](req)
	if err != nil {
		return nil, err
	}
	if _, err := a.mustSession(p.SessionID); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type SetSessionConfigOptionParams struct {
	SessionID string `json:"sessionID"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
}

func (a *Adapter) setSessionConfigOption(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	p, err := decodeParams[SetSessionConfigOptionParams](req)
	if err != nil {
		return nil, err
	}
	if _, err := a.mustSession(p.SessionID); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (a *Adapter) mustSession(sessionID string) (*sessionState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("adapter: unknown session %q", sessionID)
	}
	return st, nil
}

// resolveToolServers instantiates the in-process tool registry plus an
// MCP client connected to every configured external tool-protocol
// server, per new_session/load_session's "instantiate a tool-protocol
// client from tool_servers" contract.
func resolveToolServers(ctx context.Context, workspace string, specs []ToolServerSpec) (*tool.Registry, *mcp.Client, error) {
	local := tool.NewRegistry(workspace)
	local.Register(tool.NewBashTool(workspace))
	local.Register(tool.NewEditTool(workspace))
	local.Register(tool.NewReadTool(workspace))
	local.Register(tool.NewWriteTool(workspace))
	local.Register(tool.NewGlobTool(workspace))
	local.Register(tool.NewGrepTool(workspace))
	local.Register(tool.NewWebFetchTool(workspace))

	if len(specs) == 0 {
		return local, nil, nil
	}

	client := mcp.NewClient()
	for i, spec := range specs {
		cfg := &mcp.Config{
			Enabled:     true,
			Environment: spec.Environment,
			Headers:     spec.Headers,
			URL:         spec.URL,
		}
		switch spec.Type {
		case "stdio":
			cfg.Type = mcp.TransportTypeStdio
			cfg.Command = spec.Command
		default:
			cfg.Type = mcp.TransportTypeRemote
		}
		name := fmt.Sprintf("server-%d", i)
		if err := client.AddServer(ctx, name, cfg); err != nil {
			log.Warn().Err(err).Str("server", name).Msg("adapter: tool server unavailable")
		}
	}
	return local, client, nil
}

func mergeToolDefinitions(local *tool.Registry, mcpClient *mcp.Client) []types.ToolDefinition {
	defs := local.Definitions()
	if mcpClient == nil {
		return defs
	}
	for _, t := range mcpClient.Tools() {
		var schema map[string]any
		_ = json.Unmarshal(t.InputSchema, &schema)
		defs = append(defs, types.ToolDefinition{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return defs
}
