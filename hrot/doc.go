// Package hrot implements the hyper-rotation secure messaging building blocks.
//
// Two parties holding a pre-shared secret derive, independently and
// deterministically, a fresh symmetric key for every fixed-duration
// time window and use it to authenticate-encrypt messages with no
// online key exchange. The library provides the key schedule
// (hrot/crypto), the wire format (hrot/wire), replay protection
// (hrot/replay), per-channel orchestration (hrot/session), erasure
// coded bulk payloads (hrot/bulk), and a QUIC-based demo transport
// (hrot/transport/quic).
//
// Compromise of the shared secret compromises every past and future
// window: the protocol deliberately trades forward secrecy for
// zero-handshake operation.
package hrot
