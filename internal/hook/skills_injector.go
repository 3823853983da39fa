package hook

import (
	"context"
	"strings"

	"github.com/nullstream/agentcore/internal/session"
	"github.com/nullstream/agentcore/internal/skill"
	"github.com/nullstream/agentcore/pkg/types"
)

// SkillsInjector is the pre-request hook that keeps a session's always-on
// skill set current and injects matched, non-always-on skills as context
// ahead of the turn's Provider call (§4.8).
type SkillsInjector struct {
	Registry *skill.Registry
}

func (s *SkillsInjector) Name() string { return "skills_injector" }

func (s *SkillsInjector) PreRequest(ctx context.Context, sess *session.Session, userPrompt string, tools []types.ToolDefinition) error {
	sess.SetAlwaysOnSkills(s.Registry.AlwaysOn())

	names := s.Registry.Match(userPrompt)
	if len(names) == 0 {
		return nil
	}

	var blocks []string
	for _, name := range names {
		if s.Registry.IsProgressive(name) {
			blocks = append(blocks, s.Registry.AsPromptBlock([]string{name}))
			continue
		}
		content, err := s.Registry.Activate(name)
		if err != nil {
			continue
		}
		blocks = append(blocks, content)
	}
	if len(blocks) == 0 {
		return nil
	}

	return sess.AddContextMessage(ctx, strings.Join(blocks, "\n\n"))
}
