package tool

import (
	"encoding/json"
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/nullstream/agentcore/internal/agent"
	"github.com/nullstream/agentcore/pkg/types"
)

// Registry manages tool registration and lookup for the built-in,
// in-process tool server the engine dispatches against alongside any
// external tool-protocol servers reached through internal/mcp.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	workDir string
}

// NewRegistry creates a new tool registry.
func NewRegistry(workDir string) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		workDir: workDir,
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.Debug().Str("tool", t.ID()).Msg("registering built-in tool")
	r.tools[t.ID()] = t
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// IDs returns all tool IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	return ids
}

// Definitions returns the provider-native ToolDefinition list advertised to
// the model, the in-process equivalent of a tools/list response.
func (r *Registry) Definitions() []types.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]types.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, types.ToolDefinition{
			Name:        t.ID(),
			Description: t.Description(),
			InputSchema: parseJSONSchemaRaw(t.Parameters()),
		})
	}
	return defs
}

// parseJSONSchemaRaw decodes a tool's JSON Schema parameters into a generic
// map for embedding in a provider-native ToolDefinition.
func parseJSONSchemaRaw(schemaJSON json.RawMessage) map[string]any {
	var raw map[string]any
	if err := json.Unmarshal(schemaJSON, &raw); err != nil {
		return map[string]any{}
	}
	return raw
}

// EinoTools returns Eino-compatible tools for binding to a chat model.
func (r *Registry) EinoTools() []einotool.BaseTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]einotool.BaseTool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t.EinoTool())
	}
	return tools
}

// ToolInfos returns Eino tool infos for all tools.
func (r *Registry) ToolInfos() ([]*schema.ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		params := parseJSONSchemaToParams(t.Parameters())
		infos = append(infos, &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos, nil
}

// DefaultRegistry creates a registry with all built-in tools.
func DefaultRegistry(workDir string) *Registry {
	r := NewRegistry(workDir)

	r.Register(NewReadTool(workDir))
	r.Register(NewWriteTool(workDir))
	r.Register(NewEditTool(workDir))
	r.Register(NewBashTool(workDir))
	r.Register(NewGlobTool(workDir))
	r.Register(NewGrepTool(workDir))
	r.Register(NewListTool(workDir))
	r.Register(NewWebFetchTool(workDir))
	r.Register(NewBatchTool(workDir, r))

	// TaskTool requires an agent registry; register separately via
	// RegisterTaskTool once one is available.

	log.Info().Int("count", len(r.tools)).Strs("tools", r.IDs()).Msg("built-in tool registry ready")
	return r
}

// RegisterTaskTool registers the task tool with the given agent registry.
// This must be called separately after the agent registry is available.
func (r *Registry) RegisterTaskTool(agentReg *agent.Registry) {
	r.Register(NewTaskTool(r.workDir, agentReg))
}

// SetTaskExecutor sets the executor for the task tool, enabling actual
// subagent execution instead of a placeholder response.
func (r *Registry) SetTaskExecutor(executor TaskExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tools["Task"]; ok {
		if taskTool, ok := t.(*TaskTool); ok {
			taskTool.SetExecutor(executor)
		}
	}
}
