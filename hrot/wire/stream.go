package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize limits a single framed wire message.
const MaxMessageSize = 1 << 20 // 1 MiB

var (
	ErrMessageTooLarge = errors.New("wire: message too large")
	ErrMessageTooShort = errors.New("wire: message shorter than header")
)

// WriteMessage frames one sealed message onto a stream transport.
// Format:
//
//	4 bytes: message length (big endian)
//	N bytes: header || ciphertext || tag
//
// Datagram transports carry the message bytes unframed.
func WriteMessage(w io.Writer, msg []byte) error {
	if len(msg) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	if len(msg) < HeaderSize {
		return ErrMessageTooShort
	}

	bw := bufio.NewWriter(w)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(msg)))
	if _, err := bw.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := bw.Write(msg); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadMessage reads one framed message from a stream transport.
func ReadMessage(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	msgLen := binary.BigEndian.Uint32(lenBuf[:])
	if msgLen > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d", ErrMessageTooLarge, msgLen)
	}
	if msgLen < HeaderSize {
		return nil, ErrMessageTooShort
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
