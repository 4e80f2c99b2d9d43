// Package session orchestrates key derivation, sealing, and replay
// protection for one channel of the hrot protocol.
package session

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/zfifteen/hrot/hrot/channel"
	"github.com/zfifteen/hrot/hrot/crypto"
	"github.com/zfifteen/hrot/hrot/crypto/keycache"
	"github.com/zfifteen/hrot/hrot/replay"
	"github.com/zfifteen/hrot/hrot/wire"
)

var (
	ErrWindowOutOfRange = errors.New("session: window outside drift tolerance")
	ErrReplayDetected   = errors.New("session: replay detected")
	ErrWrongChannel     = errors.New("session: message for a different channel")
)

// Session is the protocol context for one channel. Both directions of
// the channel run through it: outbound messages are keyed under the
// local role, inbound ones under the peer role.
//
// A Session owns all mutable per-channel state (key cache, sender
// counters, replay guard) and serializes access with its own lock, so
// independent channels never contend.
type Session struct {
	cfg  Config
	hash channel.Hash

	mu       sync.Mutex
	cache    *keycache.Cache
	counters *replay.Counters
	guard    *replay.Guard
}

// NewSession validates cfg once and builds the channel context. No
// validation happens per message afterwards.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:      cfg,
		hash:     channel.HashID(cfg.ChannelID),
		cache:    keycache.New(cfg.KeyRetentionWindows),
		counters: replay.NewCounters(),
		guard:    replay.NewGuard(cfg.KeyRetentionWindows),
	}, nil
}

// ChannelHash returns the routing hash this session answers to.
func (s *Session) ChannelHash() channel.Hash { return s.hash }

// Window returns the rotation window containing now.
func (s *Session) Window(now time.Time) uint64 {
	return WindowAt(now, s.cfg.Rotation)
}

// Send seals plaintext for the window containing now and returns the
// complete wire message: header || ciphertext || tag.
func (s *Session) Send(plaintext []byte, now time.Time) ([]byte, error) {
	window := s.Window(now)

	s.mu.Lock()
	counter := s.counters.Next(window)
	s.counters.Prune(window, uint64(s.cfg.KeyRetentionWindows))
	eng, err := s.engineLocked(s.cfg.Role, window, window)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	header := wire.Header{
		Version:     wire.Version,
		Alg:         s.cfg.Alg,
		ChannelHash: s.hash,
		WindowID:    window,
		Counter:     counter,
	}
	if _, err := rand.Read(header.NonceRandom[:]); err != nil {
		return nil, err
	}

	headerBytes := header.Encode()
	sealed, err := eng.Seal(header.Nonce(), headerBytes, plaintext)
	if err != nil {
		return nil, err
	}
	return append(headerBytes, sealed...), nil
}

// Receive authenticates and decrypts one inbound wire message.
// The pipeline order is load-bearing: decode, drift bound, derive,
// authenticate, replay check. Replay state is only ever touched by
// messages that already authenticated.
func (s *Session) Receive(msg []byte, now time.Time) ([]byte, error) {
	header, err := wire.DecodeHeader(msg)
	if err != nil {
		return nil, err
	}
	if header.ChannelHash != s.hash {
		return nil, ErrWrongChannel
	}

	local := s.Window(now)
	if distance(header.WindowID, local) > uint64(s.cfg.DriftToleranceWindows) {
		return nil, ErrWindowOutOfRange
	}

	// The declared window is trusted for derivation once it passes the
	// drift bound; a lying header inside the bound can only produce a
	// key that fails authentication.
	s.mu.Lock()
	eng, err := s.engineLocked(s.cfg.Role.Peer(), header.WindowID, local)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	plaintext, err := eng.Open(header.Nonce(), msg[:wire.HeaderSize], msg[wire.HeaderSize:])
	if err != nil {
		return nil, err
	}

	if !s.guard.Accept(header.WindowID, header.Counter, local) {
		return nil, ErrReplayDetected
	}
	return plaintext, nil
}

// engineLocked returns an AEAD engine for (role, window), deriving and
// caching the key on a miss. The engine is built before s.mu is
// released because construction copies the key; a later eviction of
// the cached slice cannot affect it. Callers hold s.mu.
func (s *Session) engineLocked(role crypto.Role, window, current uint64) (*crypto.Engine, error) {
	key, ok := s.cache.Get(role, window)
	if !ok {
		key = crypto.DeriveWindowKey(s.cfg.Secret, s.cfg.ChannelID, role, window)
		s.cache.Put(role, window, key, current)
	}
	return crypto.NewEngine(key)
}

// Close zeroizes cached key material and replay state. The session
// must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Zeroize()
	s.guard.Reset()
}

func distance(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
