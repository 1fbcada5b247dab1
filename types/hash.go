package types

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashSize is the size of a block, header or transaction hash.
const HashSize = 32

// Hash is a keccak256 digest.
type Hash [HashSize]byte

// BytesToHash converts b to a Hash, left-padding or truncating as needed.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashSize {
		b = b[len(b)-HashSize:]
	}
	copy(h[HashSize-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return fmt.Sprintf("%X", h[:]) }

// ShortString returns the first 4 bytes of the hash, hex-encoded.
func (h Hash) ShortString() string { return hex.EncodeToString(h[:4]) }

func keccak256(data ...[]byte) Hash {
	hasher := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hasher.Write(d) //nolint:errcheck // never fails
	}

	var h Hash
	hasher.Sum(h[:0])
	return h
}
