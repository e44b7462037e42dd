package types

// Event is the broadcastable form of a ledger event: a type tag plus flat
// string attributes suitable for logs and indexers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
