package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of a derived window key (256 bits).
	KeySize = 32
	// MinSecretSize is the minimum length of the pre-shared secret.
	MinSecretSize = 32
)

// contextPrefix versions the derivation context. Changing the key
// schedule in any way requires bumping this label.
const contextPrefix = "hrot:v1|"

var ErrSecretTooShort = errors.New("crypto: shared secret too short")

// Role identifies the traffic direction of a channel. It enters key
// derivation so the two directions never share key material.
type Role uint8

const (
	RoleInitiator Role = 1
	RoleResponder Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unknown"
	}
}

// Peer returns the opposite role. Inbound messages are keyed under the
// sender's role, so receivers derive with Peer().
func (r Role) Peer() Role {
	if r == RoleInitiator {
		return RoleResponder
	}
	return RoleInitiator
}

// Valid reports whether r is a defined role.
func (r Role) Valid() bool {
	return r == RoleInitiator || r == RoleResponder
}

// CheckSecret validates the pre-shared secret once at bootstrap.
// DeriveWindowKey assumes this has passed and never re-checks.
func CheckSecret(secret []byte) error {
	if len(secret) < MinSecretSize {
		return ErrSecretTooShort
	}
	return nil
}

// DeriveKey runs HKDF-SHA256 over ikm with the given salt and context
// info and returns length bytes. It is the extract-and-expand step
// behind DeriveWindowKey and fails only when length exceeds the HKDF
// output limit.
func DeriveKey(ikm, salt, info []byte, length int) ([]byte, error) {
	key := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, info), key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveWindowKey computes the symmetric key for one (channel, role,
// window) triple. The schedule:
//
//	seed = HMAC-SHA256(secret, BE64(window))
//	prk  = HKDF-Extract(salt = SHA-256(channelID), ikm = seed)
//	key  = HKDF-Expand(prk, info = "hrot:v1|" || channelID || "|" || role || "|" || BE64(window), 32)
//
// The function is pure: identical inputs always yield identical bytes.
func DeriveWindowKey(secret, channelID []byte, role Role, window uint64) []byte {
	var wb [8]byte
	binary.BigEndian.PutUint64(wb[:], window)

	mac := hmac.New(sha256.New, secret)
	mac.Write(wb[:])
	seed := mac.Sum(nil)

	salt := sha256.Sum256(channelID)

	roleLabel := role.String()
	info := make([]byte, 0, len(contextPrefix)+len(channelID)+len(roleLabel)+10)
	info = append(info, contextPrefix...)
	info = append(info, channelID...)
	info = append(info, '|')
	info = append(info, roleLabel...)
	info = append(info, '|')
	info = append(info, wb[:]...)

	// KeySize is far below the HKDF output limit, so this cannot fail.
	key, _ := DeriveKey(seed, salt[:], info, KeySize)
	return key
}
