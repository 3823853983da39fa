// Package provider provides LLM provider abstraction using Eino framework.
package provider

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/nullstream/agentcore/pkg/types"
)

// Provider represents an LLM provider with Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []types.Model

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel

	// CreateCompletion creates a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int               `json:"maxTokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	TopP        float64           `json:"topP,omitempty"`
	StopWords   []string          `json:"stopWords,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk from the stream.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// ToolInfo represents a tool definition for the LLM.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ConvertToEinoTools converts internal tool definitions to Eino format.
func ConvertToEinoTools(tools []ToolInfo) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		// Parse parameters from JSON schema
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			params = parseJSONSchemaToParams(t.Parameters)
		}

		result[i] = &schema.ToolInfo{
			Name: t.Name,
			Desc: t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return result
}

// parseJSONSchemaToParams converts JSON Schema to Eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}

// ConvertEvents converts the Session's logical Event history into Eino chat
// messages. Session.AddAssistantResponse persists one assistant Event per
// tool call (Event's tool_call_name column is singular, per spec.md §3) plus
// at most one content/reasoning-only assistant Event ahead of them; this
// reassembles that run of consecutive assistant Events back into the single
// provider-native assistant message (with a tool_calls list) that chat
// completion APIs expect. A tool-role Event becomes a tool-role message
// addressed by ToolCallID.
func ConvertEvents(events []types.Event) []*schema.Message {
	result := make([]*schema.Message, 0, len(events))

	for _, ev := range events {
		if ev.Role == types.RoleAssistant {
			appendAssistantEvent(&result, ev)
			continue
		}

		role := schema.User
		switch ev.Role {
		case types.RoleSystem:
			role = schema.System
		case types.RoleTool:
			role = schema.Tool
		}

		content := ""
		if ev.Content != nil {
			content = *ev.Content
		}
		msg := &schema.Message{Role: role, Content: content}
		if ev.Role == types.RoleTool && ev.ToolCallID != nil {
			msg.ToolCallID = *ev.ToolCallID
		}
		result = append(result, msg)
	}

	return result
}

func appendAssistantEvent(result *[]*schema.Message, ev types.Event) {
	content := ""
	if ev.Content != nil {
		content = *ev.Content
	}

	hasToolCall := ev.ToolCallID != nil && ev.ToolCallName != nil
	last := len(*result) - 1
	mergeIntoPrev := last >= 0 && (*result)[last].Role == schema.Assistant

	if mergeIntoPrev {
		prev := (*result)[last]
		if content != "" {
			prev.Content += content
		}
		if hasToolCall {
			argsJSON, _ := json.Marshal(ev.ToolArguments)
			prev.ToolCalls = append(prev.ToolCalls, schema.ToolCall{
				ID: *ev.ToolCallID,
				Function: schema.FunctionCall{
					Name:      *ev.ToolCallName,
					Arguments: string(argsJSON),
				},
			})
		}
		return
	}

	msg := &schema.Message{Role: schema.Assistant, Content: content}
	if hasToolCall {
		argsJSON, _ := json.Marshal(ev.ToolArguments)
		msg.ToolCalls = []schema.ToolCall{{
			ID: *ev.ToolCallID,
			Function: schema.FunctionCall{
				Name:      *ev.ToolCallName,
				Arguments: string(argsJSON),
			},
		}}
	}
	*result = append(*result, msg)
}
