package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/routine/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestInvocation creates a test invocation with minimal required fields.
func createTestInvocation(id, operationID string, seq int64) InvocationRecord {
	return InvocationRecord{
		ID:          id,
		OperationID: operationID,
		ActionType:  operationID,
		Payload:     ir.Array{},
		Seq:         seq,
	}
}

// createTestEvent creates a lifecycle event for the todos/FETCH operation.
func createTestEvent(invocationID string, kind ir.Kind, seq int64) ir.Event {
	ev := ir.Event{
		Kind:         kind,
		OperationID:  "todos/FETCH",
		InvocationID: invocationID,
		KeyPath:      ir.KeyPath{"todos"},
		Seq:          seq,
	}
	switch kind {
	case ir.KindTrigger:
		ev.Type = "todos/FETCH"
	case ir.KindRequest:
		ev.Type = "todos/FETCH/REQUEST"
	case ir.KindSuccess:
		ev.Type = "todos/FETCH/SUCCESS"
		ev.Response = ir.Array{ir.Object{"id": ir.Int(1)}}
		ev.Strategy = ir.Named(ir.StrategyReplace)
	case ir.KindFail:
		ev.Type = "todos/FETCH/FAIL"
		ev.Error = ir.String("boom")
	}
	return ev
}

// mustWriteInvocation writes inv or fails the test.
func mustWriteInvocation(t *testing.T, s *Store, inv InvocationRecord) {
	t.Helper()
	if err := s.WriteInvocation(context.Background(), inv); err != nil {
		t.Fatalf("WriteInvocation() failed: %v", err)
	}
}

// mustWriteEvent writes ev or fails the test.
func mustWriteEvent(t *testing.T, s *Store, ev ir.Event) string {
	t.Helper()
	id, err := s.WriteEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("WriteEvent() failed: %v", err)
	}
	return id
}
