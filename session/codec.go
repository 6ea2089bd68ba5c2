package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is bumped whenever the stored record shape changes.
const CurrentSchemaVersion = 1

// ErrCorrupt is returned when a stored blob cannot be decoded.
var ErrCorrupt = errors.New("session blob corrupt")

type envelope struct {
	Schema  int      `json:"schema"`
	Session *Session `json:"session"`
}

// Encode serializes a session record for storage. Encoding is deterministic
// for a given record, which the store's whole-value check-and-set relies on.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil session", ErrCorrupt)
	}
	return json.Marshal(envelope{Schema: CurrentSchemaVersion, Session: s})
}

// Decode deserializes a stored blob.
func Decode(data []byte) (*Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Session == nil {
		return nil, fmt.Errorf("%w: empty envelope", ErrCorrupt)
	}
	if env.Schema <= 0 || env.Schema > CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema %d", ErrCorrupt, env.Schema)
	}
	return env.Session, nil
}
