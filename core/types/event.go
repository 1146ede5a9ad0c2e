package types

// Event captures a structured state change produced while applying an
// instruction. Attributes are flat string pairs so downstream consumers
// (journal, metrics, indexers) never need to understand engine internals.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
