// Package quic ships sealed hrot messages between peers. The protocol
// core assumes nothing about delivery; this transport may duplicate,
// reorder, or drop without affecting correctness, so streams carry
// length-framed wire messages and nothing else.
package quic

import (
	"context"
	"net"

	q "github.com/quic-go/quic-go"

	"github.com/zfifteen/hrot/hrot/wire"
)

// Conn is a QUIC connection restricted to ferrying framed hrot wire
// messages. Each outbound message rides its own stream so the loss of
// one never stalls another.
type Conn struct {
	inner *q.Conn
}

// SendMessage opens a fresh stream, writes one framed message, and
// closes the stream.
func (c *Conn) SendMessage(ctx context.Context, msg []byte) error {
	st, err := c.inner.OpenStreamSync(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return wire.WriteMessage(st, msg)
}

// Serve accepts streams and hands every framed message read from them
// to deliver, until the connection or ctx ends. A read error ends only
// the stream it occurred on.
func (c *Conn) Serve(ctx context.Context, deliver func([]byte)) {
	for {
		st, err := c.inner.AcceptStream(ctx)
		if err != nil {
			return
		}
		go func() {
			defer st.Close()
			for {
				msg, err := wire.ReadMessage(st)
				if err != nil {
					return
				}
				deliver(msg)
			}
		}()
	}
}

func (c *Conn) Close() error {
	return c.inner.CloseWithError(0, "done")
}

type Listener struct {
	inner *q.Listener
}

func Listen(addr string) (*Listener, error) {
	tlsConf, err := NewServerTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := q.ListenAddr(addr, tlsConf, &q.Config{})
	if err != nil {
		return nil, err
	}
	return &Listener{inner: ln}, nil
}

func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	conn, err := l.inner.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{inner: conn}, nil
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) AddrString() string {
	if l.inner == nil {
		return ""
	}
	return l.inner.Addr().String()
}

func (l *Listener) Close() error { return l.inner.Close() }

func Dial(ctx context.Context, addr string) (*Conn, error) {
	tlsConf, err := NewClientTLSConfig()
	if err != nil {
		return nil, err
	}
	conn, err := q.DialAddr(ctx, addr, tlsConf, &q.Config{})
	if err != nil {
		return nil, err
	}
	return &Conn{inner: conn}, nil
}
