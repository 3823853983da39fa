package types

// SkillFormat is the closed set of disclosure formats a Skill can declare.
type SkillFormat string

const (
	SkillKeyword   SkillFormat = "keyword"
	SkillTask      SkillFormat = "task"
	SkillAlwaysOn  SkillFormat = "always-on"
	SkillProgressive SkillFormat = "progressive"
)

// SkillResources points at the optional adjacent directories a skill may
// ship alongside its SKILL.md.
type SkillResources struct {
	Scripts    string `json:"scripts,omitempty"`
	References string `json:"references,omitempty"`
	Assets     string `json:"assets,omitempty"`
}

// Skill is a named unit of retrievable instructions, discovered from a
// SKILL.md file's YAML frontmatter. Name is unique within a scope; project
// scope shadows global scope. Content is read together with the frontmatter
// at discovery and returned by Activate.
type Skill struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Content     string          `json:"-"`
	Triggers    []string        `json:"triggers,omitempty"`
	SourcePath  string          `json:"sourcePath"`
	Format      SkillFormat     `json:"format"`
	Resources   *SkillResources `json:"resources,omitempty"`
}
