package react

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nullstream/agentcore/internal/mcp"
	"github.com/nullstream/agentcore/internal/tool"
	"github.com/nullstream/agentcore/pkg/types"
)

// Dispatcher is the subordinate "tool protocol client" of §4.5 Tool
// Execution: it fans a finalized ToolCallInput out to whichever backend
// advertises that name, the in-process built-in registry or a connected
// external MCP server.
type Dispatcher struct {
	Local *tool.Registry
	MCP   *mcp.Client
}

// Dispatch executes one finalized tool call and maps its outcome to a
// ToolResult. Per-call failures never return an error from Dispatch itself
// -- they are encoded as an IsError ToolResult so one failing tool never
// fails its peers (§4.5).
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, call types.ToolCallInput) types.ToolResult {
	if call.ParseError != nil {
		return types.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("malformed tool arguments: %v", call.ParseError),
			IsError:    true,
		}
	}

	if d.Local != nil {
		if t, ok := d.Local.Get(call.Name); ok {
			return d.dispatchLocal(ctx, sessionID, call, t)
		}
	}
	if d.MCP != nil {
		return d.dispatchMCP(ctx, call)
	}
	return types.ToolResult{
		ToolCallID: call.ID,
		Content:    fmt.Sprintf("no tool server advertises %q", call.Name),
		IsError:    true,
	}
}

func (d *Dispatcher) dispatchLocal(ctx context.Context, sessionID string, call types.ToolCallInput, t tool.Tool) types.ToolResult {
	input, err := json.Marshal(call.Arguments)
	if err != nil {
		return types.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}

	result, err := t.Execute(ctx, input, &tool.Context{
		SessionID: sessionID,
		CallID:    call.ID,
	})
	if err != nil {
		return types.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}

	return types.ToolResult{
		ToolCallID: call.ID,
		Content:    result.Output,
		RawOutput:  result.Metadata,
	}
}

func (d *Dispatcher) dispatchMCP(ctx context.Context, call types.ToolCallInput) types.ToolResult {
	args, err := json.Marshal(call.Arguments)
	if err != nil {
		return types.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	output, err := d.MCP.ExecuteTool(ctx, call.Name, args)
	if err != nil {
		return types.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	return types.ToolResult{ToolCallID: call.ID, Content: output}
}
