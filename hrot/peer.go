package hrot

import (
	"context"
	"errors"
	"time"

	"github.com/zfifteen/hrot/hrot/channel"
	"github.com/zfifteen/hrot/hrot/session"
	"github.com/zfifteen/hrot/hrot/transport/quic"
)

var (
	ErrNotListening = errors.New("hrot: peer is not listening")
	ErrNoSession    = errors.New("hrot: no session for channel")
)

// Peer is a high-level helper that combines the transport with a
// session mux. It intentionally stays small so applications can swap
// the transport and higher-level behavior.
type Peer struct {
	mux      *session.Mux
	listener *quic.Listener
}

func NewPeer() *Peer {
	return &Peer{mux: session.NewMux()}
}

// AddChannel registers a channel session built from cfg and returns it.
func (p *Peer) AddChannel(cfg session.Config) (*session.Session, error) {
	s, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	if err := p.mux.Add(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Mux exposes the underlying session mux.
func (p *Peer) Mux() *session.Mux { return p.mux }

func (p *Peer) Listen(addr string) error {
	ln, err := quic.Listen(addr)
	if err != nil {
		return err
	}
	p.listener = ln
	return nil
}

func (p *Peer) ListenAddr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.AddrString()
}

func (p *Peer) Close() error {
	p.mux.Close()
	if p.listener == nil {
		return nil
	}
	return p.listener.Close()
}

// Serve accepts connections and delivers each authenticated plaintext
// to handle. Messages that fail decoding, authentication, or replay
// checks are dropped; no inbound failure is fatal.
func (p *Peer) Serve(ctx context.Context, handle func(channel.Hash, []byte)) error {
	if p.listener == nil {
		return ErrNotListening
	}
	for {
		conn, err := p.listener.Accept(ctx)
		if err != nil {
			return err
		}
		go conn.Serve(ctx, func(msg []byte) {
			if hash, plaintext, err := p.mux.Receive(msg, time.Now()); err == nil {
				handle(hash, plaintext)
			}
		})
	}
}

// Send seals plaintext on the channel identified by hash and ships it
// to addr over a short-lived connection.
func (p *Peer) Send(ctx context.Context, addr string, hash channel.Hash, plaintext []byte) error {
	s, ok := p.mux.Session(hash)
	if !ok {
		return ErrNoSession
	}
	msg, err := s.Send(plaintext, time.Now())
	if err != nil {
		return err
	}

	conn, err := quic.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.SendMessage(ctx, msg)
}
