package wire

import (
	"encoding/binary"
	"errors"

	"github.com/zfifteen/hrot/hrot/channel"
)

const (
	// Version is the current wire protocol version.
	Version = 1

	// HeaderSize is the fixed cleartext header size.
	HeaderSize = 56
	// NonceRandomSize is the random filler carried in every header.
	NonceRandomSize = 22
	// NonceSize is the AEAD nonce reconstructed from the header.
	NonceSize = 24
	// TagSize is the Poly1305 tag appended after the ciphertext.
	TagSize = 16
)

var (
	ErrMalformedHeader      = errors.New("wire: malformed header")
	ErrUnsupportedVersion   = errors.New("wire: unsupported protocol version")
	ErrUnsupportedAlgorithm = errors.New("wire: unsupported algorithm")
)

// AlgID identifies the AEAD algorithm sealing the payload.
type AlgID uint8

const (
	AlgXChaCha20Poly1305 AlgID = 0x01
)

func (a AlgID) String() string {
	switch a {
	case AlgXChaCha20Poly1305:
		return "XCHACHA20-POLY1305"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether a is a known algorithm identifier.
func (a AlgID) Valid() bool {
	return a == AlgXChaCha20Poly1305
}

// Header is the cleartext message header. Its encoded bytes double as
// the AEAD associated data, binding routing and rotation metadata to
// the ciphertext.
//
// Layout (56 bytes, big endian):
//
//	1 byte:   version
//	1 byte:   algorithm id
//	16 bytes: channel hash (BLAKE2b-128 of the channel identifier)
//	8 bytes:  window id
//	8 bytes:  per-window message counter
//	22 bytes: nonce random filler
type Header struct {
	Version     uint8
	Alg         AlgID
	ChannelHash channel.Hash
	WindowID    uint64
	Counter     uint64
	NonceRandom [NonceRandomSize]byte
}

// Encode serializes the header to its fixed 56-byte form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Version
	buf[1] = byte(h.Alg)
	copy(buf[2:18], h.ChannelHash[:])
	binary.BigEndian.PutUint64(buf[18:26], h.WindowID)
	binary.BigEndian.PutUint64(buf[26:34], h.Counter)
	copy(buf[34:56], h.NonceRandom[:])
	return buf
}

// DecodeHeader parses the fixed header from the front of data.
// Unrecognized version or algorithm bytes are rejected outright,
// never negotiated.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrMalformedHeader
	}
	var h Header
	h.Version = data[0]
	h.Alg = AlgID(data[1])
	copy(h.ChannelHash[:], data[2:18])
	h.WindowID = binary.BigEndian.Uint64(data[18:26])
	h.Counter = binary.BigEndian.Uint64(data[26:34])
	copy(h.NonceRandom[:], data[34:56])

	if h.Version != Version {
		return Header{}, ErrUnsupportedVersion
	}
	if !h.Alg.Valid() {
		return Header{}, ErrUnsupportedAlgorithm
	}
	return h, nil
}

// Nonce reconstructs the 192-bit AEAD nonce the header determines:
// window id (8) || counter (8) || nonce random prefix (8). The window
// and counter make the nonce structurally unique under a given key;
// the random prefix re-randomizes after sender state loss. The
// remaining random bytes are authenticated via the header but do not
// enter the nonce.
func (h Header) Nonce() []byte {
	nonce := make([]byte, NonceSize)
	binary.BigEndian.PutUint64(nonce[0:8], h.WindowID)
	binary.BigEndian.PutUint64(nonce[8:16], h.Counter)
	copy(nonce[16:24], h.NonceRandom[:8])
	return nonce
}
