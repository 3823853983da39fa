package provider

import (
	"context"
	"io"

	"github.com/cloudwego/eino/schema"

	"github.com/nullstream/agentcore/pkg/types"
)

// Request is the Provider contract's single entry point (spec.md §4.3):
// issue one streaming chat completion against an already provider-native
// message sequence (as produced by Session.AsProviderMessages) and return a
// channel of Chunk. The channel is closed when the stream ends, errors, or
// ctx is cancelled; a ChunkTerminator chunk always precedes closing on a
// clean stream end.
func Request(ctx context.Context, p Provider, messages []*schema.Message, tools []types.ToolDefinition, modelID string, params types.RequestParams) (<-chan types.Chunk, error) {
	einoTools := convertToolDefinitions(tools)

	temperature := 0.0
	if params.Temperature != nil {
		temperature = *params.Temperature
	}

	stream, err := p.CreateCompletion(ctx, &CompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Tools:       einoTools,
		MaxTokens:   params.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan types.Chunk)
	go pumpStream(ctx, stream, out)
	return out, nil
}

func pumpStream(ctx context.Context, stream *CompletionStream, out chan<- types.Chunk) {
	defer close(out)
	defer stream.Close()

	send := func(c types.Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			send(types.Chunk{Kind: types.ChunkTerminator, FinishReason: "stop"})
			return
		}
		if err != nil {
			send(types.Chunk{Kind: types.ChunkTerminator, FinishReason: "error"})
			return
		}

		if msg.Content != "" {
			if !send(types.Chunk{Kind: types.ChunkContentDelta, Text: msg.Content}) {
				return
			}
		}
		if reasoning, ok := reasoningContent(msg); ok && reasoning != "" {
			if !send(types.Chunk{Kind: types.ChunkReasoningDelta, Text: reasoning}) {
				return
			}
		}
		for _, tc := range msg.ToolCalls {
			chunk := types.Chunk{Kind: types.ChunkToolCallDelta}
			if tc.ID != "" {
				chunk.ToolCallID = tc.ID
			}
			if tc.Function.Name != "" {
				chunk.ToolCallName = tc.Function.Name
			}
			chunk.ArgsFragment = tc.Function.Arguments
			if !send(chunk) {
				return
			}
		}
		if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
			u := msg.ResponseMeta.Usage
			if !send(types.Chunk{
				Kind:             types.ChunkUsageTotals,
				PromptTokens:     u.PromptTokens,
				CompletionTokens: u.CompletionTokens,
				TotalTokens:      u.TotalTokens,
			}) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// reasoningContent extracts hidden chain-of-thought text from an Eino
// message's extra field, where eino-ext's model adapters stash it.
func reasoningContent(msg *schema.Message) (string, bool) {
	if msg.Extra == nil {
		return "", false
	}
	if v, ok := msg.Extra["reasoning_content"]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

func convertToolDefinitions(tools []types.ToolDefinition) []*schema.ToolInfo {
	if len(tools) == 0 {
		return nil
	}
	result := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		result = append(result, &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(parseToolInputSchema(t.InputSchema)),
		})
	}
	return result
}

func parseToolInputSchema(inputSchema map[string]any) map[string]*schema.ParameterInfo {
	properties, _ := inputSchema["properties"].(map[string]any)
	if properties == nil {
		return nil
	}
	requiredSet := map[string]bool{}
	if req, ok := inputSchema["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				requiredSet[s] = true
			}
		}
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, raw := range properties {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		paramType := schema.String
		switch prop["type"] {
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
		desc, _ := prop["description"].(string)
		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     desc,
			Required: requiredSet[name],
		}
	}
	return params
}
