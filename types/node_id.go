package types

import (
	"errors"
	"fmt"
	"strings"
)

// NodeID is a hex-encoded peer identifier, as handed over by the transport
// once the connection handshake completed.
type NodeID string

// ShortString returns the first 8 characters of the ID, used in logs.
func (id NodeID) ShortString() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Validate validates the NodeID.
func (id NodeID) Validate() error {
	switch {
	case len(id) == 0:
		return errors.New("empty node ID")
	case strings.ToLower(string(id)) != string(id):
		return fmt.Errorf("node ID can only contain lowercased characters: %q", string(id))
	}
	return nil
}
