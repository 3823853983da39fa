// Package react implements the ReAct Engine (§4.4): the turn-by-turn
// orchestration loop that drives a Session against a Provider, dispatches
// tool calls, and runs the Hook Pipeline between turns.
package react

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nullstream/agentcore/internal/hook"
	"github.com/nullstream/agentcore/internal/provider"
	"github.com/nullstream/agentcore/internal/session"
	"github.com/nullstream/agentcore/pkg/types"
)

// UpdateFunc receives one protocol-level update as the engine streams a
// turn; the Protocol Adapter wires this to its JSON-RPC notification
// sender.
type UpdateFunc func(types.Update)

// Engine orchestrates turns for a single Session.
type Engine struct {
	Provider   provider.Provider
	Dispatcher *Dispatcher
	Hooks      *hook.Pipeline

	// MaxTurns bounds the total number of provider round-trips (including
	// post-react restarts) across one Run call. 0 means a large default.
	MaxTurns int
}

// Run drives sess with userPrompt until the loop reaches Final,
// Cancelled, or the max_turns ceiling, emitting one Update per stream
// event via emit. It returns the Session as last replaced by mid-react
// hooks (e.g. after compaction), so callers holding their own reference
// to a Session can adopt the post-compaction view.
func (e *Engine) Run(ctx context.Context, sess *session.Session, userPrompt string, emit UpdateFunc) (*session.Session, types.StopReason, error) {
	maxTurns := e.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1000
	}

	current := sess
	pending := userPrompt
	if pending != "" {
		if err := current.AddUserMessage(ctx, pending); err != nil {
			return current, types.StopError, err
		}
	}

	for turn := 0; turn < maxTurns; turn++ {
		if ctx.Err() != nil {
			return current, types.StopCancelled, nil
		}

		e.Hooks.RunPreRequest(ctx, current, pending, current.Info().ToolDefinitions)

		updated, done, reason, finalText, err := e.runTurn(ctx, current, emit)
		current = updated
		if err != nil {
			return current, types.StopError, err
		}
		if !done {
			pending = ""
			continue
		}
		if reason == types.StopCancelled {
			return current, reason, nil
		}

		nextPrompt := e.Hooks.RunPostReact(ctx, current, finalText)
		if nextPrompt == "" {
			return current, types.StopEndTurn, nil
		}
		if err := current.AddUserMessage(ctx, nextPrompt); err != nil {
			return current, types.StopError, err
		}
		pending = nextPrompt
	}

	_ = current.AddAssistantResponse(ctx, "", "max_turns reached; stopping.", nil, nil)
	return current, types.StopMaxTurnsReached, nil
}

// runTurn executes steps 1-10 of the per-turn procedure once. done is
// true when the turn concluded the overall loop (cancelled or no tool
// calls); done is false when tool calls were dispatched and the caller
// should immediately start the next turn.
func (e *Engine) runTurn(ctx context.Context, sess *session.Session, emit UpdateFunc) (updated *session.Session, done bool, reason types.StopReason, finalText string, err error) {
	sessionID := sess.Info().SessionID

	messages, err := sess.AsProviderMessages(ctx)
	if err != nil {
		return sess, true, types.StopError, "", err
	}

	chunks, err := provider.Request(ctx, e.Provider, messages, sess.Info().ToolDefinitions, sess.Info().ModelIdentifier, sess.Info().RequestParams)
	if err != nil {
		return sess, true, types.StopError, "", err
	}

	acc := newAccumulator()
	for chunk := range chunks {
		acc.applyChunk(chunk)
		if u, ok := mapChunkToUpdate(sessionID, chunk); ok {
			emit(u)
		}
		if ctx.Err() != nil {
			acc.finalize()
			_ = sess.AddAssistantResponse(ctx, acc.Reasoning, acc.Content, acc.ToolCallInputs, nil)
			return sess, true, types.StopCancelled, "", nil
		}
	}
	acc.finalize()

	if ctx.Err() != nil {
		_ = sess.AddAssistantResponse(ctx, acc.Reasoning, acc.Content, acc.ToolCallInputs, nil)
		return sess, true, types.StopCancelled, "", nil
	}

	if len(acc.ToolCallInputs) == 0 {
		if err := sess.AddAssistantResponse(ctx, acc.Reasoning, acc.Content, nil, nil); err != nil {
			return sess, true, types.StopError, "", err
		}
		return sess, true, types.StopEndTurn, acc.Content, nil
	}

	results := e.dispatchAll(ctx, sessionID, acc.ToolCallInputs, emit)

	if ctx.Err() != nil {
		_ = sess.AddAssistantResponse(ctx, acc.Reasoning, acc.Content, acc.ToolCallInputs, results)
		return sess, true, types.StopCancelled, "", nil
	}

	if err := sess.AddAssistantResponse(ctx, acc.Reasoning, acc.Content, acc.ToolCallInputs, results); err != nil {
		return sess, true, types.StopError, "", err
	}

	next := e.Hooks.RunMidReact(ctx, sess, acc.TotalTokens)
	return next, false, "", "", nil
}

// dispatchAll executes every finalized tool call concurrently, emitting
// tool_call_start/tool_call_update notifications around each, and
// collects ToolResults in completion order.
func (e *Engine) dispatchAll(ctx context.Context, sessionID string, calls []types.ToolCallInput, emit UpdateFunc) []types.ToolResult {
	resultsCh := make(chan types.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for _, call := range calls {
		call := call
		g.Go(func() error {
			emit(types.Update{
				Kind:        types.UpdateToolCallStart,
				SessionID:   sessionID,
				ToolCallID:  call.ID,
				Title:       call.Name,
				ToolKind:    classifyTool(call.Name),
				InitialArgs: call.Arguments,
				Status:      types.ToolCallInProgress,
			})

			result := e.Dispatcher.Dispatch(gctx, sessionID, call)

			status := types.ToolCallCompleted
			if result.IsError {
				status = types.ToolCallFailed
			}
			emit(types.Update{
				Kind:       types.UpdateToolCallUpdate,
				SessionID:  sessionID,
				ToolCallID: call.ID,
				Status:     status,
				Content:    result.Content,
				Diff:       result.Diff,
				RawOutput:  result.RawOutput,
			})

			resultsCh <- result
			return nil
		})
	}
	_ = g.Wait()
	close(resultsCh)

	results := make([]types.ToolResult, 0, len(calls))
	for r := range resultsCh {
		results = append(results, r)
	}
	return results
}

// classifyTool maps a tool name to the coarse kind the protocol's
// tool_call_start update advertises to the client.
func classifyTool(name string) types.ToolCallKind {
	switch strings.ToLower(name) {
	case "read", "glob":
		return types.ToolKindRead
	case "edit", "write", "patch":
		return types.ToolKindEdit
	case "bash":
		return types.ToolKindExecute
	case "grep", "webfetch":
		return types.ToolKindSearch
	default:
		return types.ToolKindOther
	}
}

// partialToolCall accumulates a streaming tool call's name and argument
// fragments until the stream ends.
type partialToolCall struct {
	id   string
	name string
	args strings.Builder
}

// Accumulator is the mutable structure external to the stream consumer
// that §4.4 calls the central design decision: any caller, including a
// concurrent cancellation checker, can read its latest partial state
// without reaching into the consumer goroutine.
type Accumulator struct {
	mu sync.Mutex

	Reasoning string
	Content   string

	toolCalls     map[string]*partialToolCall
	order         []string
	currentCallID string

	ToolCallInputs []types.ToolCallInput

	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func newAccumulator() *Accumulator {
	return &Accumulator{toolCalls: make(map[string]*partialToolCall)}
}

// applyChunk updates the accumulator from one stream Chunk. Tool-call
// fragments that omit an ID (continuation fragments) are appended to the
// most recently opened call, per pkg/types.Chunk's documented contract.
func (a *Accumulator) applyChunk(c types.Chunk) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch c.Kind {
	case types.ChunkReasoningDelta:
		a.Reasoning += c.Text
	case types.ChunkContentDelta:
		a.Content += c.Text
	case types.ChunkToolCallDelta:
		if c.ToolCallID != "" {
			a.currentCallID = c.ToolCallID
			if _, exists := a.toolCalls[c.ToolCallID]; !exists {
				a.toolCalls[c.ToolCallID] = &partialToolCall{id: c.ToolCallID, name: c.ToolCallName}
				a.order = append(a.order, c.ToolCallID)
			} else if c.ToolCallName != "" {
				a.toolCalls[c.ToolCallID].name = c.ToolCallName
			}
		}
		if a.currentCallID != "" {
			a.toolCalls[a.currentCallID].args.WriteString(c.ArgsFragment)
		}
	case types.ChunkUsageTotals:
		a.PromptTokens = c.PromptTokens
		a.CompletionTokens = c.CompletionTokens
		a.TotalTokens = c.TotalTokens
	}
}

// finalize joins each partial call's argument fragments and parses them
// as JSON, populating ToolCallInputs. A call whose arguments fail to
// parse is still included, with ParseError set, so the engine can surface
// it as a failed tool event rather than dropping the call silently.
func (a *Accumulator) finalize() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ToolCallInputs = a.ToolCallInputs[:0]
	for _, id := range a.order {
		tc := a.toolCalls[id]
		raw := tc.args.String()

		input := types.ToolCallInput{ID: tc.id, Name: tc.name}
		if raw == "" {
			input.Arguments = map[string]any{}
		} else if err := json.Unmarshal([]byte(raw), &input.Arguments); err != nil {
			input.ParseError = err
		}
		a.ToolCallInputs = append(a.ToolCallInputs, input)
	}
}

// Snapshot returns a read-only copy of the accumulator's current partial
// state, safe to call from a goroutine other than the stream consumer
// (e.g. an external cancellation checker inspecting in-flight progress).
func (a *Accumulator) Snapshot() (reasoning, content string, totalTokens int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Reasoning, a.Content, a.TotalTokens
}

// mapChunkToUpdate translates one provider Chunk into a protocol-level
// Update, or reports ok=false for chunk kinds with no direct update
// (usage totals, the stream terminator).
func mapChunkToUpdate(sessionID string, c types.Chunk) (types.Update, bool) {
	switch c.Kind {
	case types.ChunkReasoningDelta:
		return types.Update{Kind: types.UpdateAgentThoughtDelta, SessionID: sessionID, Text: c.Text}, true
	case types.ChunkContentDelta:
		return types.Update{Kind: types.UpdateAgentMessageDelta, SessionID: sessionID, Text: c.Text}, true
	case types.ChunkToolCallDelta:
		return types.Update{Kind: types.UpdateToolCallUpdate, SessionID: sessionID, ToolCallID: c.ToolCallID, Status: types.ToolCallInProgress}, true
	default:
		return types.Update{}, false
	}
}
