// Package compact implements §4.7 Compaction: keeping a session's token
// total under its configured threshold by summarizing the middle of its
// history while preserving head and tail verbatim.
package compact

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/nullstream/agentcore/internal/provider"
	"github.com/nullstream/agentcore/internal/session"
	"github.com/nullstream/agentcore/pkg/types"
)

const (
	defaultThreshold = 100_000
	defaultKeepHead  = 2
	defaultKeepTail  = 10
)

const summaryInstruction = `Summarize the conversation above in plain prose, not as a transcript. Preserve:
- user goals stated in it
- decisions taken
- files edited
- outstanding TODOs
- any error the agent is still recovering from`

// Compactor drives compaction against a configured Provider. Model, if
// set, is a cheaper tier used for the summarization call instead of the
// session's own model.
type Compactor struct {
	Provider provider.Provider
	Model    string
}

// New creates a Compactor. model may be empty, in which case
// summarization uses the session's own ModelIdentifier.
func New(p provider.Provider, model string) *Compactor {
	return &Compactor{Provider: p, Model: model}
}

// Run applies the compaction algorithm to sess if its current token total
// exceeds the configured (or default) threshold, returning whether
// compaction actually occurred. Summarization failure is non-fatal: Run
// returns (false, nil) so the mid-react hook retries on the next cycle
// rather than failing the turn.
func (c *Compactor) Run(ctx context.Context, sess *session.Session) (bool, error) {
	total, err := sess.TokenTotal(ctx)
	if err != nil {
		return false, fmt.Errorf("compact: token_total: %w", err)
	}

	params := sess.Info().RequestParams
	threshold := orDefault(params.CompactionThreshold, defaultThreshold)
	keepHead := orDefault(params.CompactionKeepHead, defaultKeepHead)
	keepTail := orDefault(params.CompactionKeepTail, defaultKeepTail)

	if total <= threshold {
		return false, nil
	}

	events, err := sess.RawEvents(ctx)
	if err != nil {
		return false, fmt.Errorf("compact: raw_events: %w", err)
	}
	if len(events) <= keepHead+keepTail {
		return false, nil
	}

	headEnd, tailStart := partitionBoundaries(events, keepHead, keepTail)
	middle := events[headEnd:tailStart]
	if len(middle) == 0 {
		return false, nil
	}

	summary, err := c.summarize(ctx, sess, middle)
	if err != nil {
		return false, nil
	}

	convIndexes := make([]int64, len(events))
	for i, ev := range events {
		convIndexes[i] = ev.ConvIndex
	}

	sessionID := sess.Info().SessionID
	if _, err := sess.Store().RecordCompaction(ctx, sessionID, convIndexes, headEnd, len(events)-tailStart, summary); err != nil {
		return false, fmt.Errorf("compact: record_compaction: %w", err)
	}

	updated, err := sess.Store().LoadSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("compact: reload session: %w", err)
	}
	sess.Replace(updated)

	return true, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// partitionBoundaries computes the [0:headEnd) head, [headEnd:tailStart)
// middle, and [tailStart:len) tail ranges, shifting either boundary away
// from the middle whenever the naive cut would split an assistant
// tool_call event from its matching tool-result event.
func partitionBoundaries(events []types.Event, keepHead, keepTail int) (headEnd, tailStart int) {
	headEnd = keepHead
	for headEnd < len(events) && splitsPair(events, headEnd) {
		headEnd++
	}

	tailStart = len(events) - keepTail
	for tailStart > headEnd && splitsPair(events, tailStart) {
		tailStart--
	}
	if tailStart < headEnd {
		tailStart = headEnd
	}
	return headEnd, tailStart
}

// splitsPair reports whether cutting events at boundary would separate an
// assistant tool_call event (just before the cut) from its tool-result
// event (at or after the cut).
func splitsPair(events []types.Event, boundary int) bool {
	if boundary <= 0 || boundary >= len(events) {
		return false
	}
	prev := events[boundary-1]
	if prev.Role != types.RoleAssistant || prev.ToolCallID == nil {
		return false
	}
	for i := boundary; i < len(events); i++ {
		if events[i].Role == types.RoleTool && events[i].ToolCallID != nil && *events[i].ToolCallID == *prev.ToolCallID {
			return true
		}
	}
	return false
}

// summarize asks the same Provider (and, implicitly, the same prefix up
// to middle) to condense middle into prose. Tool calling is disabled by
// passing no tool definitions.
func (c *Compactor) summarize(ctx context.Context, sess *session.Session, middle []types.Event) (string, error) {
	msgs := provider.ConvertEvents(middle)
	msgs = append(msgs, &schema.Message{Role: schema.User, Content: summaryInstruction})

	modelID := sess.Info().ModelIdentifier
	if c.Model != "" {
		modelID = c.Model
	}

	chunks, err := provider.Request(ctx, c.Provider, msgs, nil, modelID, types.RequestParams{})
	if err != nil {
		return "", fmt.Errorf("compact: summarize request: %w", err)
	}

	var b strings.Builder
	for chunk := range chunks {
		switch chunk.Kind {
		case types.ChunkContentDelta:
			b.WriteString(chunk.Text)
		case types.ChunkTerminator:
			if chunk.FinishReason == "error" {
				return "", fmt.Errorf("compact: summarization stream ended in error")
			}
		}
	}

	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return "", fmt.Errorf("compact: summarizer returned empty content")
	}
	return summary, nil
}
