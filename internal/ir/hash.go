package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent = "routine/event/v1"
	DomainState = "routine/state/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed ID of a lifecycle event.
// The ID is stable across replays given the same event and seq, which makes
// event log writes idempotent.
func EventID(ev Event) (string, error) {
	obj := Object{
		"invocation_id": String(ev.InvocationID),
		"kind":          String(ev.Kind.String()),
		"type":          String(ev.Type),
		"operation_id":  String(ev.OperationID),
		"key_path":      ev.KeyPath.Value(),
		"seq":           Int(ev.Seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainEvent, canonical), nil
}

// StateHash fingerprints a state tree. Two trees with equal content always
// hash equally regardless of map iteration order.
func StateHash(state Object) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainState, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(ev Event) string {
	id, err := EventID(ev)
	if err != nil {
		panic(err)
	}
	return id
}
