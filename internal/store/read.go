package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/routine/internal/ir"
)

const eventColumns = `id, invocation_id, kind, action_type, operation_id, key_path, payload, response, strategy, error, seq`

// ReadEvents returns lifecycle events matching filter.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadEvents(ctx context.Context, filter EventFilter) ([]EventRecord, error) {
	var (
		where []string
		args  []any
	)

	if filter.InvocationID != "" {
		where = append(where, "invocation_id = ?")
		args = append(args, filter.InvocationID)
	}
	if filter.OperationID != "" {
		where = append(where, "operation_id = ?")
		args = append(args, filter.OperationID)
	}
	if len(filter.Kinds) > 0 {
		placeholders := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			placeholders[i] = "?"
			args = append(args, k.String())
		}
		where = append(where, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, filter.AfterSeq)
	}

	query := "SELECT " + eventColumns + " FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// ReadEvent retrieves a single event by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadEvent(ctx context.Context, id string) (EventRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	return scanEvent(row)
}

// ReadInvocation retrieves a single invocation by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadInvocation(ctx context.Context, id string) (InvocationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, operation_id, action_type, payload, seq
		FROM invocations
		WHERE id = ?
	`, id)

	return scanInvocation(row)
}

// ListInvocations returns invocations in seq order. An empty operationID
// lists every invocation.
func (s *Store) ListInvocations(ctx context.Context, operationID string) ([]InvocationRecord, error) {
	query := `
		SELECT id, operation_id, action_type, payload, seq
		FROM invocations`
	var args []any
	if operationID != "" {
		query += " WHERE operation_id = ?"
		args = append(args, operationID)
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
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
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}

	return invocations, nil
}

// CountEvents returns the number of persisted events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row scanner) (InvocationRecord, error) {
	var (
		inv         InvocationRecord
		payloadJSON string
	)

	if err := row.Scan(&inv.ID, &inv.OperationID, &inv.ActionType, &payloadJSON, &inv.Seq); err != nil {
		if err == sql.ErrNoRows {
			return InvocationRecord{}, err
		}
		return InvocationRecord{}, fmt.Errorf("scan invocation: %w", err)
	}

	payload, err := unmarshalPayload(payloadJSON)
	if err != nil {
		return InvocationRecord{}, fmt.Errorf("invocation %s: %w", inv.ID, err)
	}
	inv.Payload = payload

	return inv, nil
}

func scanEvent(row scanner) (EventRecord, error) {
	var (
		rec          EventRecord
		invocationID sql.NullString
		kind         string
		keyPathJSON  string
		payloadJSON  string
		responseJSON sql.NullString
		errorJSON    sql.NullString
	)

	err := row.Scan(
		&rec.ID,
		&invocationID,
		&kind,
		&rec.Event.Type,
		&rec.Event.OperationID,
		&keyPathJSON,
		&payloadJSON,
		&responseJSON,
		&rec.StrategyLabel,
		&errorJSON,
		&rec.Event.Seq,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return EventRecord{}, err
		}
		return EventRecord{}, fmt.Errorf("scan event: %w", err)
	}

	ev := &rec.Event
	ev.InvocationID = invocationID.String

	if ev.Kind, err = ir.ParseKind(kind); err != nil {
		return EventRecord{}, fmt.Errorf("event %s: %w", rec.ID, err)
	}
	if ev.KeyPath, err = unmarshalKeyPath(keyPathJSON); err != nil {
		return EventRecord{}, fmt.Errorf("event %s: %w", rec.ID, err)
	}
	if ev.Payload, err = unmarshalPayload(payloadJSON); err != nil {
		return EventRecord{}, fmt.Errorf("event %s: %w", rec.ID, err)
	}
	if ev.Response, err = unmarshalOptional(responseJSON); err != nil {
		return EventRecord{}, fmt.Errorf("event %s: response: %w", rec.ID, err)
	}
	if ev.Error, err = unmarshalOptional(errorJSON); err != nil {
		return EventRecord{}, fmt.Errorf("event %s: error: %w", rec.ID, err)
	}

	if rec.StrategyLabel != "" && !strings.HasPrefix(rec.StrategyLabel, string(ir.StrategyCustom)+":") {
		if ev.Strategy, err = ir.ParseStrategy(rec.StrategyLabel); err != nil {
			return EventRecord{}, fmt.Errorf("event %s: %w", rec.ID, err)
		}
	}

	return rec, nil
}
