package channel

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of a channel routing hash in bytes.
const HashSize = 16

var ErrInvalidHash = errors.New("channel: invalid hash length")

// Hash is the 128-bit routing tag carried in every message header.
// It is the BLAKE2b-128 digest of the channel identifier; the raw
// identifier never appears on the wire.
type Hash [HashSize]byte

// HashID computes the routing hash of a channel identifier.
func HashID(id []byte) Hash {
	// New cannot fail for a valid size and no key.
	h, _ := blake2b.New(HashSize, nil)
	h.Write(id)
	var out Hash
	h.Sum(out[:0])
	return out
}

// ParseHashHex decodes a channel hash from its hex form.
func ParseHashHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	if len(b) != HashSize {
		return Hash{}, ErrInvalidHash
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
