// Package crypto provides the cryptographic primitives for hrot.
//
// Design goals:
//   - Deterministic per-window key derivation via HKDF-SHA256, so both
//     parties compute identical keys with no online exchange
//   - Domain separation across channel, role, and time window
//   - AEAD encryption via XChaCha20-Poly1305 (192-bit nonce)
//   - Fast on commodity hardware (no AES-NI required)
package crypto
