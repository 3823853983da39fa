// Package config provides configuration loading, merging, and path
// management for the agent.
//
// # Configuration Loading
//
// Load implements a hierarchical loading strategy, merging configuration
// from multiple sources in priority order:
//
//  1. Global config (~/.config/agentcore/agent.yaml or agent.jsonc)
//  2. Project config (<directory>/.agentcore/agent.yaml or agent.jsonc)
//  3. <directory>/.env, loaded into the process environment via
//     joho/godotenv (variables already set are kept)
//  4. Environment variables: AGENTCORE_STORAGE_PATH replaces the storage
//     path; provider API key variables fill in only keys that no config
//     file set
//
// # Supported Formats
//
//   - agent.yaml - the primary format, parsed with gopkg.in/yaml.v3
//   - agent.jsonc - JSON with comments, stripped via tidwall/jsonc before
//     being handed to the same decoder
//
// # Configuration Merging
//
// Sources are merged with later sources winning scalar conflicts and maps
// merged key by key; see mergeConfig.
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/agentcore (XDG_DATA_HOME)
//   - Config: ~/.config/agentcore (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/agentcore (XDG_CACHE_HOME)
//   - State: ~/.local/state/agentcore (XDG_STATE_HOME)
//
// On Windows these paths fall back to APPDATA.
package config
