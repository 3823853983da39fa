package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/nullstream/agentcore/internal/compact"
	"github.com/nullstream/agentcore/internal/hook"
	"github.com/nullstream/agentcore/internal/logging"
	"github.com/nullstream/agentcore/internal/mcp"
	"github.com/nullstream/agentcore/internal/provider"
	"github.com/nullstream/agentcore/internal/skill"
	"github.com/nullstream/agentcore/internal/store"
	"github.com/nullstream/agentcore/internal/tool"
	"github.com/nullstream/agentcore/pkg/types"
)

// stack bundles the components every command needs to drive a session:
// the durable store, a resolved default Provider/model pair, a local tool
// registry, an optional MCP client, and a fully wired Hook Pipeline.
type stack struct {
	Store       *store.Store
	ProviderReg *provider.Registry
	Provider    provider.Provider
	Model       string
	Tools       *tool.Registry
	MCP         *mcp.Client
	Hooks       *hook.Pipeline
	Skills      *skill.Registry
}

// buildStack opens the store, initializes providers, resolves the
// workspace's tool catalog, and wires the Hook Pipeline's skills_injector
// and compaction stations per cfg.
func buildStack(ctx context.Context, cfg *types.Config, workDir, modelOverride string, providerReg *provider.Registry) (*stack, error) {
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	st := store.New(db)

	providerID, modelID := resolveModel(cfg, modelOverride)
	p, err := providerReg.Get(providerID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider %q: %w", providerID, err)
	}

	toolReg := tool.NewRegistry(workDir)
	toolReg.Register(tool.NewBashTool(workDir))
	toolReg.Register(tool.NewEditTool(workDir))
	toolReg.Register(tool.NewReadTool(workDir))
	toolReg.Register(tool.NewWriteTool(workDir))
	toolReg.Register(tool.NewGlobTool(workDir))
	toolReg.Register(tool.NewGrepTool(workDir))
	toolReg.Register(tool.NewWebFetchTool(workDir))

	var mcpClient *mcp.Client
	if len(cfg.ToolProtocol.Servers) > 0 {
		mcpClient = mcp.NewClient()
		for _, srv := range cfg.ToolProtocol.Servers {
			mcfg := &mcp.Config{Enabled: true, Command: srv.Command, URL: srv.URL}
			switch srv.Kind {
			case "stdio":
				mcfg.Type = mcp.TransportTypeStdio
			default:
				mcfg.Type = mcp.TransportTypeRemote
			}
			if err := mcpClient.AddServer(ctx, srv.Name, mcfg); err != nil {
				logging.Warn().Err(err).Str("server", srv.Name).Msg("tool server unavailable")
			}
		}
	}

	skillReg := skill.NewRegistry(nil)
	if err := skillReg.Discover(cfg.Skills.GlobalDirs, cfg.Skills.ProjectDirs); err != nil {
		return nil, fmt.Errorf("discover skills: %w", err)
	}

	hooks := hook.NewPipeline()
	if enabled(cfg.Hooks.Enabled, "skills_injector") {
		if err := hooks.Register(hook.StationPreRequest, &hook.SkillsInjector{Registry: skillReg}); err != nil {
			return nil, err
		}
	}
	if enabled(cfg.Hooks.Enabled, "compaction") {
		compactor := compact.New(p, cfg.Session.CompactionModel)
		if err := hooks.Register(hook.StationMidReact, &hook.CompactionHook{Compactor: compactor}); err != nil {
			return nil, err
		}
	}

	return &stack{
		Store:       st,
		ProviderReg: providerReg,
		Provider:    p,
		Model:       modelID,
		Tools:       toolReg,
		MCP:         mcpClient,
		Hooks:       hooks,
		Skills:      skillReg,
	}, nil
}

func enabled(list []string, name string) bool {
	if len(list) == 0 {
		return true
	}
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// resolveModel splits a "provider/model" override (or, without one, the
// entry of whichever configured provider map iteration yields first)
// into its two parts.
func resolveModel(cfg *types.Config, override string) (providerID, modelID string) {
	spec := override
	if spec == "" {
		for name, pc := range cfg.Provider {
			spec = name + "/" + pc.Model
			break
		}
	}
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return spec, ""
}
