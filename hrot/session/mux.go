package session

import (
	"errors"
	"sync"
	"time"

	"github.com/zfifteen/hrot/hrot/channel"
	"github.com/zfifteen/hrot/hrot/wire"
)

var (
	ErrUnknownChannel   = errors.New("session: no session for channel")
	ErrDuplicateChannel = errors.New("session: channel already registered")
)

// Mux routes inbound wire messages to the session owning their channel
// hash. The mux lock only guards the routing table; each session keeps
// its own lock, so traffic on different channels proceeds in parallel.
type Mux struct {
	mu       sync.RWMutex
	sessions map[channel.Hash]*Session
}

// NewMux creates an empty mux.
func NewMux() *Mux {
	return &Mux{sessions: make(map[channel.Hash]*Session)}
}

// Add registers a session under its channel hash.
func (m *Mux) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ChannelHash()]; exists {
		return ErrDuplicateChannel
	}
	m.sessions[s.ChannelHash()] = s
	return nil
}

// Remove unregisters and closes the session for hash, if any.
func (m *Mux) Remove(hash channel.Hash) {
	m.mu.Lock()
	s := m.sessions[hash]
	delete(m.sessions, hash)
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// Session returns the registered session for hash.
func (m *Mux) Session(hash channel.Hash) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[hash]
	return s, ok
}

// Receive decodes the header just far enough to route the message,
// then hands it to the owning session. It returns the channel hash so
// callers can attribute the plaintext.
func (m *Mux) Receive(msg []byte, now time.Time) (channel.Hash, []byte, error) {
	header, err := wire.DecodeHeader(msg)
	if err != nil {
		return channel.Hash{}, nil, err
	}
	s, ok := m.Session(header.ChannelHash)
	if !ok {
		return header.ChannelHash, nil, ErrUnknownChannel
	}
	plaintext, err := s.Receive(msg, now)
	return header.ChannelHash, plaintext, err
}

// Close closes every registered session.
func (m *Mux) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, s := range m.sessions {
		s.Close()
		delete(m.sessions, hash)
	}
}
