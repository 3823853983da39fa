package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/nullstream/agentcore/pkg/types"
)

// Load loads configuration from multiple sources (priority order):
//  1. Global config (~/.config/agentcore/agent.yaml or agent.jsonc)
//  2. Project config (<directory>/.agentcore/agent.yaml or agent.jsonc)
//  3. <directory>/.env, loaded into the environment (secrets only)
//  4. Environment variables (API keys only where no config file set one)
func Load(directory string) (*types.Config, error) {
	cfg := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	globalPath := GetPaths().Config
	loadConfigFile(filepath.Join(globalPath, "agent.yaml"), cfg)
	loadConfigFile(filepath.Join(globalPath, "agent.jsonc"), cfg)

	if directory != "" {
		loadConfigFile(filepath.Join(directory, ".agentcore", "agent.yaml"), cfg)
		loadConfigFile(filepath.Join(directory, ".agentcore", "agent.jsonc"), cfg)
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// loadConfigFile loads and merges a single config file. YAML is tried first;
// a .jsonc extension is parsed permissively via tidwall/jsonc, which strips
// comments and trailing commas before handing the remainder to the decoder.
func loadConfigFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file types.Config
	if filepath.Ext(path) == ".jsonc" {
		if err := yaml.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	mergeConfig(cfg, &file)
	return nil
}

// mergeConfig merges source into target; scalars overwrite, maps merge key
// by key, the last-loaded source wins conflicts.
func mergeConfig(target, source *types.Config) {
	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}
	if source.Session.CompactionThreshold != 0 {
		target.Session.CompactionThreshold = source.Session.CompactionThreshold
	}
	if source.Session.CompactionKeepHead != 0 {
		target.Session.CompactionKeepHead = source.Session.CompactionKeepHead
	}
	if source.Session.CompactionKeepTail != 0 {
		target.Session.CompactionKeepTail = source.Session.CompactionKeepTail
	}
	if source.Session.CompactionModel != "" {
		target.Session.CompactionModel = source.Session.CompactionModel
	}
	if len(source.Skills.GlobalDirs) > 0 {
		target.Skills.GlobalDirs = source.Skills.GlobalDirs
	}
	if len(source.Skills.ProjectDirs) > 0 {
		target.Skills.ProjectDirs = source.Skills.ProjectDirs
	}
	if len(source.Hooks.Enabled) > 0 {
		target.Hooks.Enabled = source.Hooks.Enabled
	}
	if source.Storage.Path != "" {
		target.Storage.Path = source.Storage.Path
	}
	if len(source.ToolProtocol.Servers) > 0 {
		target.ToolProtocol.Servers = source.ToolProtocol.Servers
	}
	if source.Engine.MaxTurns != 0 {
		target.Engine.MaxTurns = source.Engine.MaxTurns
	}
	if source.Engine.CheckpointOnEveryToken {
		target.Engine.CheckpointOnEveryToken = true
	}
}

// applyEnvOverrides applies the handful of env vars that stand in for
// secrets and the storage path, mirroring the teacher's env-override idiom.
func applyEnvOverrides(cfg *types.Config) {
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"bedrock":   "AWS_ACCESS_KEY_ID",
		"ark":       "ARK_API_KEY",
	}
	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			if cfg.Provider == nil {
				cfg.Provider = make(map[string]types.ProviderConfig)
			}
			p := cfg.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				cfg.Provider[provider] = p
			}
		}
	}
	if path := os.Getenv("AGENTCORE_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}
}

// applyDefaults fills in the values spec.md §6 calls out as "default very
// large" / sensible without requiring every deployment to set them.
func applyDefaults(cfg *types.Config) {
	if cfg.Session.CompactionThreshold == 0 {
		cfg.Session.CompactionThreshold = 150000
	}
	if cfg.Session.CompactionKeepHead == 0 {
		cfg.Session.CompactionKeepHead = 4
	}
	if cfg.Session.CompactionKeepTail == 0 {
		cfg.Session.CompactionKeepTail = 4
	}
	if cfg.Engine.MaxTurns == 0 {
		cfg.Engine.MaxTurns = 1 << 20
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(GetPaths().Data, "agentcore.db")
	}
}

// Save writes the configuration back out as YAML.
func Save(cfg *types.Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
