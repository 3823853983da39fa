// Package skill implements the Skill Registry: discovery and progressive
// disclosure of named instruction bundles loaded from SKILL.md files.
package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/nullstream/agentcore/pkg/types"
)

const maxDescriptionChars = 1024

// Scorer computes a semantic similarity score between a user message and a
// skill description, for "progressive" format skills. Injectable so the
// embedding model stays an interface-only dependency (spec §1 out-of-scope).
type Scorer interface {
	Score(userMessage, description string) float64
}

// Registry holds discovered skills, indexed by name. Project-scope
// directories are discovered after global ones and shadow them by name.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*types.Skill
	order  []string // discovery order, for stable list_metadata output
	scorer Scorer
}

// NewRegistry creates an empty Registry. Call Discover to populate it.
func NewRegistry(scorer Scorer) *Registry {
	return &Registry{
		skills: make(map[string]*types.Skill),
		scorer: scorer,
	}
}

type frontmatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Triggers    []string `yaml:"triggers"`
	Format      string   `yaml:"format"`
}

// Discover walks globalDirs then projectDirs, indexing every SKILL.md it
// finds by the frontmatter's name field. A name discovered again in a
// later directory (in particular, any project directory relative to a
// global one) replaces the earlier entry -- project shadows global.
func (r *Registry) Discover(globalDirs, projectDirs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skills = make(map[string]*types.Skill)
	r.order = nil

	for _, dir := range globalDirs {
		if err := r.discoverDir(dir); err != nil {
			return err
		}
	}
	for _, dir := range projectDirs {
		if err := r.discoverDir(dir); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) discoverDir(dir string) error {
	matches, err := doublestar.Glob(os.DirFS(dir), "**/SKILL.md")
	if err != nil {
		return fmt.Errorf("skill: glob %s: %w", dir, err)
	}

	for _, rel := range matches {
		path := filepath.Join(dir, rel)
		sk, err := parseSkillFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping malformed skill file")
			continue
		}
		if _, exists := r.skills[sk.Name]; !exists {
			r.order = append(r.order, sk.Name)
		}
		r.skills[sk.Name] = sk
	}
	return nil
}

func parseSkillFile(path string) (*types.Skill, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fm, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, err
	}

	var meta frontmatter
	if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if meta.Name == "" {
		return nil, fmt.Errorf("missing required field: name")
	}
	if len(meta.Description) > maxDescriptionChars {
		return nil, fmt.Errorf("description exceeds %d characters", maxDescriptionChars)
	}

	format := types.SkillFormat(meta.Format)
	switch format {
	case types.SkillKeyword, types.SkillTask, types.SkillAlwaysOn, types.SkillProgressive:
	default:
		format = types.SkillKeyword
	}

	dir := filepath.Dir(path)
	return &types.Skill{
		Name:        meta.Name,
		Description: meta.Description,
		Content:     body,
		Triggers:    meta.Triggers,
		SourcePath:  path,
		Format:      format,
		Resources:   discoverResources(dir),
	}, nil
}

func discoverResources(dir string) *types.SkillResources {
	res := &types.SkillResources{}
	found := false
	for _, sub := range []string{"scripts", "references", "assets"} {
		p := filepath.Join(dir, sub)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			found = true
			switch sub {
			case "scripts":
				res.Scripts = p
			case "references":
				res.References = p
			case "assets":
				res.Assets = p
			}
		}
	}
	if !found {
		return nil
	}
	return res
}

// splitFrontmatter separates a "---\n...\n---\n" YAML block from the rest
// of a SKILL.md file's body.
func splitFrontmatter(content string) (fm, body string, err error) {
	const delim = "---"
	if !strings.HasPrefix(content, delim) {
		return "", "", fmt.Errorf("missing YAML frontmatter")
	}
	rest := content[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return "", "", fmt.Errorf("unterminated YAML frontmatter")
	}
	fm = rest[:idx]
	body = strings.TrimPrefix(rest[idx+len(delim)+1:], "\n")
	return fm, body, nil
}

// ListMetadata returns names and descriptions only, in discovery order.
func (r *Registry) ListMetadata() []types.Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Skill, 0, len(r.order))
	for _, name := range r.order {
		sk := r.skills[name]
		out = append(out, types.Skill{Name: sk.Name, Description: sk.Description, Format: sk.Format, SourcePath: sk.SourcePath})
	}
	return out
}

// AlwaysOn returns the full content of every always-on skill, for callers
// assembling Session.SetAlwaysOnSkills.
func (r *Registry) AlwaysOn() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var blocks []string
	for _, name := range r.order {
		sk := r.skills[name]
		if sk.Format == types.SkillAlwaysOn {
			blocks = append(blocks, sk.Content)
		}
	}
	return blocks
}

// Activate returns a skill's full instruction content by name. The content
// is already resident from Discover (SKILL.md files are small), so this is
// a lookup for callers that only hold a name.
func (r *Registry) Activate(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sk, ok := r.skills[name]
	if !ok {
		return "", fmt.Errorf("skill: unknown skill %q", name)
	}
	return sk.Content, nil
}

// Match returns skill names relevant to userMessage, in discovery order:
// keyword skills by substring match, task skills by regex match, and
// progressive skills whose injected Scorer result is at least 0.5 (no
// progressive skill matches when no Scorer is configured).
func (r *Registry) Match(userMessage string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(userMessage)
	var names []string
	for _, name := range r.order {
		sk := r.skills[name]
		switch sk.Format {
		case types.SkillKeyword:
			if matchesKeyword(lower, sk.Triggers) {
				names = append(names, name)
			}
		case types.SkillTask:
			if matchesTaskPattern(userMessage, sk.Triggers) {
				names = append(names, name)
			}
		case types.SkillProgressive:
			if r.scorer != nil && r.scorer.Score(userMessage, sk.Description) >= 0.5 {
				names = append(names, name)
			}
		}
	}
	return names
}

func matchesKeyword(lowerMessage string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(lowerMessage, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func matchesTaskPattern(message string, triggers []string) bool {
	for _, pattern := range triggers {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// IsProgressive reports whether name is registered with progressive
// disclosure, so the skills_injector hook knows whether to inject full
// content or just an as_prompt_block teaser.
func (r *Registry) IsProgressive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sk, ok := r.skills[name]
	return ok && sk.Format == types.SkillProgressive
}

// AsPromptBlock renders an <available_skills> block enumerating name,
// description, and location for the given skill names, truncating each
// description to stay within roughly 100 tokens (~400 characters) per
// skill.
func (r *Registry) AsPromptBlock(names []string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	b.WriteString("<available_skills>\n")
	for _, name := range names {
		sk, ok := r.skills[name]
		if !ok {
			continue
		}
		desc := sk.Description
		if len(desc) > 400 {
			desc = desc[:400] + "..."
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", sk.Name, desc, sk.SourcePath)
	}
	b.WriteString("</available_skills>")
	return b.String()
}
