package types

// Config is the closed set of configuration options the agent accepts.
// CLI flags, env-var plumbing, and file-format details are ambient
// concerns; this struct is the destination they all funnel into.
type Config struct {
	Provider     map[string]ProviderConfig `json:"provider,omitempty"`
	Session      SessionConfig             `json:"session,omitempty"`
	Skills       SkillsConfig              `json:"skills,omitempty"`
	Hooks        HooksConfig               `json:"hooks,omitempty"`
	Storage      StorageConfig             `json:"storage,omitempty"`
	ToolProtocol ToolProtocolConfig        `json:"toolProtocol,omitempty"`
	Engine       EngineConfig              `json:"engine,omitempty"`
}

// ProviderConfig configures one named chat-completion provider.
type ProviderConfig struct {
	Model    string `json:"model,omitempty"`
	BaseURL  string `json:"baseURL,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	TimeoutS int    `json:"timeoutS,omitempty"`
}

// SessionConfig holds the default compaction knobs new sessions are created
// with; individual sessions may override them in RequestParams.
type SessionConfig struct {
	CompactionThreshold int    `json:"compactionThreshold,omitempty"`
	CompactionKeepHead  int    `json:"compactionKeepHead,omitempty"`
	CompactionKeepTail  int    `json:"compactionKeepTail,omitempty"`
	CompactionModel     string `json:"compactionModel,omitempty"`
}

// SkillsConfig names the directories scanned for SKILL.md bundles. Project
// directories shadow global ones by name.
type SkillsConfig struct {
	GlobalDirs  []string `json:"globalDirs,omitempty"`
	ProjectDirs []string `json:"projectDirs,omitempty"`
}

// HooksConfig names the enabled hooks, in binding order.
type HooksConfig struct {
	Enabled []string `json:"enabled,omitempty"`
}

// StorageConfig names the persistence backend connection string.
type StorageConfig struct {
	Path string `json:"path,omitempty"`
}

// ToolServerConfig describes one downstream tool-protocol server.
type ToolServerConfig struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"` // "stdio" | "http" | "sse"
	Command []string `json:"command,omitempty"`
	URL     string   `json:"url,omitempty"`
}

// ToolProtocolConfig lists the downstream tool-protocol servers to connect.
type ToolProtocolConfig struct {
	Servers []ToolServerConfig `json:"servers,omitempty"`
}

// EngineConfig holds the ReAct Engine's safety and responsiveness knobs.
type EngineConfig struct {
	MaxTurns               int  `json:"maxTurns,omitempty"`
	CheckpointOnEveryToken bool `json:"checkpointOnEveryToken,omitempty"`
}

// Model describes one LLM model available from a provider's catalog.
type Model struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	ProviderID        string       `json:"providerID"`
	ContextLength     int          `json:"contextLength"`
	MaxOutputTokens   int          `json:"maxOutputTokens,omitempty"`
	SupportsTools     bool         `json:"supportsTools"`
	SupportsVision    bool         `json:"supportsVision"`
	SupportsReasoning bool         `json:"supportsReasoning,omitempty"`
	InputPrice        float64      `json:"inputPrice,omitempty"`
	OutputPrice       float64      `json:"outputPrice,omitempty"`
	Options           ModelOptions `json:"options,omitempty"`
}

// ModelOptions carries capability flags that affect request shaping but
// aren't simple booleans on Model itself.
type ModelOptions struct {
	PromptCaching  bool `json:"promptCaching,omitempty"`
	ExtendedOutput bool `json:"extendedOutput,omitempty"`
}
