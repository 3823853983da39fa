package hook

import (
	"context"

	"github.com/nullstream/agentcore/internal/compact"
	"github.com/nullstream/agentcore/internal/session"
)

// CompactionHook is the mid-react hook that triggers §4.7 compaction once
// a session's token total crosses its configured threshold. Compactor.Run
// mutates sess in place (via Session.Replace) and reports whether it
// actually ran; either way the same *Session is returned as the
// "replacement" so subsequent mid-react hooks see the post-compaction
// view.
type CompactionHook struct {
	Compactor *compact.Compactor
}

func (c *CompactionHook) Name() string { return "compaction" }

func (c *CompactionHook) MidReact(ctx context.Context, sess *session.Session, totalTokens int) (*session.Session, error) {
	if _, err := c.Compactor.Run(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
