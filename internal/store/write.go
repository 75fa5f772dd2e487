package store

import (
	"context"
	"fmt"

	"github.com/roach88/routine/internal/ir"
)

// WriteInvocation inserts an invocation record into the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteInvocation(ctx context.Context, inv InvocationRecord) error {
	if inv.ID == "" {
		return fmt.Errorf("write invocation: id is required")
	}

	payloadJSON, err := marshalPayload(inv.Payload)
	if err != nil {
		return fmt.Errorf("write invocation %s: %w", inv.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invocations
		(id, operation_id, action_type, payload, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.OperationID,
		inv.ActionType,
		payloadJSON,
		inv.Seq,
	)
	if err != nil {
		return fmt.Errorf("write invocation %s: %w", inv.ID, err)
	}

	return nil
}

// WriteEvent inserts a lifecycle event and returns its content-addressed id.
// Writing the same event (same content and seq) twice is a no-op.
//
// Note: a non-empty InvocationID must reference a written invocation
// (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, ev ir.Event) (string, error) {
	if err := ev.KeyPath.Validate(); err != nil {
		return "", fmt.Errorf("write event %s: %w", ev.Type, err)
	}

	id, err := ir.EventID(ev)
	if err != nil {
		return "", fmt.Errorf("write event %s: %w", ev.Type, err)
	}

	keyPathJSON, err := marshalValue(ev.KeyPath.Value())
	if err != nil {
		return "", fmt.Errorf("write event %s: key path: %w", ev.Type, err)
	}
	payloadJSON, err := marshalPayload(ev.Payload)
	if err != nil {
		return "", fmt.Errorf("write event %s: payload: %w", ev.Type, err)
	}
	responseJSON, err := marshalOptional(ev.Response)
	if err != nil {
		return "", fmt.Errorf("write event %s: response: %w", ev.Type, err)
	}
	errorJSON, err := marshalOptional(ev.Error)
	if err != nil {
		return "", fmt.Errorf("write event %s: error: %w", ev.Type, err)
	}

	strategy := ""
	if !ev.Strategy.IsZero() {
		strategy = ev.Strategy.String()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, invocation_id, kind, action_type, operation_id, key_path, payload, response, strategy, error, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		nullIfEmpty(ev.InvocationID),
		ev.Kind.String(),
		ev.Type,
		ev.OperationID,
		keyPathJSON,
		payloadJSON,
		responseJSON,
		strategy,
		errorJSON,
		ev.Seq,
	)
	if err != nil {
		return "", fmt.Errorf("write event %s: %w", ev.Type, err)
	}

	return id, nil
}
