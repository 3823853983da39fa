package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nullstream/agentcore/pkg/types"
)

// RecordCompaction replaces the events in (head, tail) with a single
// system-role summary event, within one transaction: either the delete and
// the insert both land, or neither does.
//
// beforeConvIndexes is the ordered conv_index list of every event currently
// in the session view; headKept/tailKept are counts from the front/back of
// that list. The summary is inserted at the conv_index immediately after
// the kept head, a slot the deleted middle range leaves free, so every
// surviving event keeps its conv_index and ordering is preserved without
// renumbering the tail.
func (s *Store) RecordCompaction(ctx context.Context, sessionID string, beforeConvIndexes []int64, headKept, tailKept int, summary string) (*types.CompactionEvent, error) {
	if headKept+tailKept > len(beforeConvIndexes) {
		return nil, fmt.Errorf("store: head_kept+tail_kept exceeds event count")
	}

	middle := beforeConvIndexes[headKept : len(beforeConvIndexes)-tailKept]
	beforeCount := len(beforeConvIndexes)
	afterCount := beforeCount - len(middle) + 1

	var headBoundary int64
	if headKept > 0 {
		headBoundary = beforeConvIndexes[headKept-1]
	} else {
		headBoundary = -1
	}

	var ce *types.CompactionEvent

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if len(middle) > 0 {
			placeholders := make([]any, 0, len(middle)+1)
			placeholders = append(placeholders, sessionID)
			query := `DELETE FROM events WHERE session_id = ? AND conv_index IN (`
			for i, idx := range middle {
				if i > 0 {
					query += ","
				}
				query += "?"
				placeholders = append(placeholders, idx)
			}
			query += ")"
			if _, err := tx.ExecContext(ctx, query, placeholders...); err != nil {
				return fmt.Errorf("delete middle events: %w", err)
			}
		}

		// The summary's conv_index sits strictly between the kept head and
		// the kept tail, in the slot the deleted middle range freed.
		summaryIndex := headBoundary + 1

		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (session_id, conv_index, timestamp, role, content)
			 VALUES (?, ?, ?, ?, ?)`,
			sessionID, summaryIndex, nowUnix(), string(types.RoleSystem), summary,
		)
		if err != nil {
			return fmt.Errorf("insert summary event: %w", err)
		}
		_ = res

		ts := nowUnix()
		cres, err := tx.ExecContext(ctx,
			`INSERT INTO compactions (session_id, before_count, after_count, head_kept,
				tail_kept, summary, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, beforeCount, afterCount, headKept, tailKept, summary, ts,
		)
		if err != nil {
			return fmt.Errorf("insert compaction record: %w", err)
		}
		compID, err := cres.LastInsertId()
		if err != nil {
			return err
		}

		ce = &types.CompactionEvent{
			ID:          compID,
			SessionID:   sessionID,
			BeforeCount: beforeCount,
			AfterCount:  afterCount,
			HeadKept:    headKept,
			TailKept:    tailKept,
			SummaryText: summary,
			Timestamp:   ts,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: record_compaction: %v", ErrStorageUnavailable, err)
	}
	return ce, nil
}
