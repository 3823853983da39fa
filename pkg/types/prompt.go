package types

// Prompt is a template plus a stable identifier derived from the template
// text. A given PromptID maps to exactly one Template forever; prompts are
// never mutated after creation, only upserted by content hash.
type Prompt struct {
	PromptID  string `json:"promptID"`
	Template  string `json:"template"`
	CreatedAt int64  `json:"createdAt"`
}
