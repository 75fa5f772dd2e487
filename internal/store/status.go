package store

import (
	"context"
	"fmt"

	"github.com/roach88/routine/internal/ir"
)

// InvocationStatus summarizes one invocation for trace and recovery tools.
type InvocationStatus struct {
	Invocation InvocationRecord
	Events     []EventRecord
	LastSeq    int64
	Terminal   ir.Kind // KindSuccess, KindFail, or 0 while pending
}

// Pending reports whether the invocation never reached Success or Fail.
// A pending invocation in a closed log usually hit a fatal transport error.
func (st InvocationStatus) Pending() bool {
	return st.Terminal == 0
}

// GetInvocationStatus loads an invocation and its events.
func (s *Store) GetInvocationStatus(ctx context.Context, id string) (InvocationStatus, error) {
	inv, err := s.ReadInvocation(ctx, id)
	if err != nil {
		return InvocationStatus{}, fmt.Errorf("get invocation status: %w", err)
	}

	events, err := s.ReadEvents(ctx, EventFilter{InvocationID: id})
	if err != nil {
		return InvocationStatus{}, fmt.Errorf("get invocation status: %w", err)
	}

	st := InvocationStatus{
		Invocation: inv,
		Events:     events,
		LastSeq:    inv.Seq,
	}
	for _, rec := range events {
		if rec.Event.Seq > st.LastSeq {
			st.LastSeq = rec.Event.Seq
		}
		if rec.Event.Kind.Terminal() {
			st.Terminal = rec.Event.Kind
		}
	}

	return st, nil
}

// FindPendingInvocations returns invocations without a terminal event,
// ordered by seq ASC, id ASC.
func (s *Store) FindPendingInvocations(ctx context.Context) ([]InvocationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.operation_id, i.action_type, i.payload, i.seq
		FROM invocations i
		WHERE NOT EXISTS (
			SELECT 1 FROM events e
			WHERE e.invocation_id = i.id AND e.kind IN ('success', 'fail')
		)
		ORDER BY i.seq ASC, i.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find pending invocations: %w", err)
	}
	defer rows.Close()

	invocations := []InvocationRecord{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending invocations: %w", err)
	}

	return invocations, nil
}

// GetLastSeq returns the highest seq number used in the store.
// Used to resume the logical clock when appending to an existing log.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var maxSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM invocations
			UNION ALL
			SELECT seq FROM events
		)
	`).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return maxSeq, nil
}
