package ir

// Version constants for the event log schema and engine.
const (
	// IRVersion is the event schema version written with every invocation.
	IRVersion = "1"

	// EngineVersion is the routine engine version.
	EngineVersion = "0.1.0"
)
