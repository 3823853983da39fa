// Package hook implements the Hook Pipeline (§4.6): three extension
// stations -- pre-request, mid-react, post-react -- each with isolated
// failure handling so one misbehaving hook never wedges a turn.
package hook

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nullstream/agentcore/internal/session"
	"github.com/nullstream/agentcore/pkg/types"
)

// Station names a hook registration point.
type Station string

const (
	StationPreRequest Station = "pre_request"
	StationMidReact   Station = "mid_react"
	StationPostReact  Station = "post_react"
)

// HookMisconfigured is returned by Register for any station name other
// than the three defined above.
type HookMisconfigured struct {
	Station string
}

func (e *HookMisconfigured) Error() string {
	return fmt.Sprintf("hook: unknown station %q", e.Station)
}

// PreRequestHook fires once per turn, before the Provider call. It may
// append messages to the session and load/unload skills; it has no
// return value the engine acts on.
type PreRequestHook interface {
	Name() string
	PreRequest(ctx context.Context, sess *session.Session, userPrompt string, tools []types.ToolDefinition) error
}

// MidReactHook fires after each assistant streamed response, before the
// next Provider call. It may return a replacement Session (used by
// compaction); the first non-nil replacement wins and subsequent
// mid-react hooks see it.
type MidReactHook interface {
	Name() string
	MidReact(ctx context.Context, sess *session.Session, totalTokens int) (*session.Session, error)
}

// PostReactHook fires after the loop's last turn. Returning a non-empty
// prompt string triggers a new turn with that prompt (a "ralph"
// self-verification re-run).
type PostReactHook interface {
	Name() string
	PostReact(ctx context.Context, sess *session.Session, finalText string) (string, error)
}

// Pipeline holds the hooks registered at each station, in registration
// order.
type Pipeline struct {
	mu         sync.RWMutex
	preRequest []PreRequestHook
	midReact   []MidReactHook
	postReact  []PostReactHook
}

// NewPipeline returns an empty Pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Register binds h to station. h must implement the interface matching
// station; an unrecognized station returns *HookMisconfigured.
func (p *Pipeline) Register(station Station, h any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch station {
	case StationPreRequest:
		hh, ok := h.(PreRequestHook)
		if !ok {
			return fmt.Errorf("hook: %T does not implement PreRequestHook", h)
		}
		p.preRequest = append(p.preRequest, hh)
	case StationMidReact:
		hh, ok := h.(MidReactHook)
		if !ok {
			return fmt.Errorf("hook: %T does not implement MidReactHook", h)
		}
		p.midReact = append(p.midReact, hh)
	case StationPostReact:
		hh, ok := h.(PostReactHook)
		if !ok {
			return fmt.Errorf("hook: %T does not implement PostReactHook", h)
		}
		p.postReact = append(p.postReact, hh)
	default:
		return &HookMisconfigured{Station: string(station)}
	}
	return nil
}

// RunPreRequest invokes every registered pre-request hook in order.
// Failures are logged and otherwise ignored -- execution proceeds as if
// the failing hook had returned nothing.
func (p *Pipeline) RunPreRequest(ctx context.Context, sess *session.Session, userPrompt string, tools []types.ToolDefinition) {
	p.mu.RLock()
	hooks := append([]PreRequestHook{}, p.preRequest...)
	p.mu.RUnlock()

	for _, h := range hooks {
		if err := h.PreRequest(ctx, sess, userPrompt, tools); err != nil {
			log.Warn().Err(err).Str("hook", h.Name()).Str("station", string(StationPreRequest)).Msg("hook failed")
		}
	}
}

// RunMidReact invokes every registered mid-react hook in order, threading
// any replacement Session to subsequent hooks. A hook that errors skips
// only its own cycle's effect (e.g. compaction); remaining hooks still
// run against the session as last replaced.
func (p *Pipeline) RunMidReact(ctx context.Context, sess *session.Session, totalTokens int) *session.Session {
	p.mu.RLock()
	hooks := append([]MidReactHook{}, p.midReact...)
	p.mu.RUnlock()

	current := sess
	replaced := false
	for _, h := range hooks {
		replacement, err := h.MidReact(ctx, current, totalTokens)
		if err != nil {
			log.Warn().Err(err).Str("hook", h.Name()).Str("station", string(StationMidReact)).Msg("hook failed, skipped for this cycle")
			continue
		}
		if replacement != nil && !replaced {
			current = replacement
			replaced = true
		}
	}
	return current
}

// RunPostReact invokes every registered post-react hook in order and
// returns the first non-empty re-run prompt, if any.
func (p *Pipeline) RunPostReact(ctx context.Context, sess *session.Session, finalText string) string {
	p.mu.RLock()
	hooks := append([]PostReactHook{}, p.postReact...)
	p.mu.RUnlock()

	for _, h := range hooks {
		prompt, err := h.PostReact(ctx, sess, finalText)
		if err != nil {
			log.Warn().Err(err).Str("hook", h.Name()).Str("station", string(StationPostReact)).Msg("hook failed")
			continue
		}
		if prompt != "" {
			return prompt
		}
	}
	return ""
}
