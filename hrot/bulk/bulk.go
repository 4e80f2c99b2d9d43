// Package bulk moves large payloads over lossy datagram transports.
// A payload is LZ4-compressed, Reed-Solomon erasure coded into
// data+parity shards, and each shard is sent as an independent sealed
// message; the receiver rebuilds the payload from any DataShards of
// them, tolerating up to ParityShards dropped messages.
package bulk

import (
	"errors"
	"sync"

	"github.com/klauspost/reedsolomon"
)

var (
	ErrInvalidShardConfig = errors.New("bulk: invalid data/parity shard configuration")
	ErrShardMismatch      = errors.New("bulk: shard metadata mismatch within payload")
	ErrTooManyLost        = errors.New("bulk: too many shards lost, cannot recover")
)

// Config controls the erasure coding layout of a payload.
type Config struct {
	DataShards   int // fragments required to rebuild
	ParityShards int // additional fragments that may be lost
}

// DefaultConfig survives the loss of a quarter of the shards.
func DefaultConfig() Config {
	return Config{DataShards: 8, ParityShards: 2}
}

func (c Config) validate() error {
	if c.DataShards <= 0 || c.ParityShards <= 0 {
		return ErrInvalidShardConfig
	}
	if c.DataShards+c.ParityShards > 255 {
		return ErrInvalidShardConfig
	}
	return nil
}

// Split compresses payload and erasure codes it into
// DataShards+ParityShards shards sharing payloadID.
func Split(payloadID uint32, payload []byte, cfg Config) ([]Shard, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	body := payload
	compressed := false
	if packed, err := compress(payload); err == nil && len(packed) < len(payload) {
		body = packed
		compressed = true
	}

	enc, err := reedsolomon.New(cfg.DataShards, cfg.ParityShards)
	if err != nil {
		return nil, err
	}
	parts, err := enc.Split(body)
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(parts); err != nil {
		return nil, err
	}

	shards := make([]Shard, len(parts))
	for i, part := range parts {
		shards[i] = Shard{
			PayloadID:    payloadID,
			Index:        uint8(i),
			DataShards:   uint8(cfg.DataShards),
			ParityShards: uint8(cfg.ParityShards),
			Compressed:   compressed,
			PayloadSize:  uint32(len(body)),
			Data:         part,
		}
	}
	return shards, nil
}

type pending struct {
	dataShards   int
	parityShards int
	compressed   bool
	payloadSize  int
	parts        [][]byte
	have         int
}

// Assembler collects shards, grouped by payload id, and reconstructs
// each payload as soon as enough shards arrived. Shards may arrive in
// any order and any subset of size >= DataShards suffices.
type Assembler struct {
	mu      sync.Mutex
	pending map[uint32]*pending
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{pending: make(map[uint32]*pending)}
}

// Add feeds one shard in. When the shard completes its payload, the
// rebuilt payload is returned with done=true and the payload's state
// is released.
func (a *Assembler) Add(s Shard) (payload []byte, done bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.pending[s.PayloadID]
	if !ok {
		p = &pending{
			dataShards:   int(s.DataShards),
			parityShards: int(s.ParityShards),
			compressed:   s.Compressed,
			payloadSize:  int(s.PayloadSize),
			parts:        make([][]byte, int(s.DataShards)+int(s.ParityShards)),
		}
		a.pending[s.PayloadID] = p
	}
	if int(s.DataShards) != p.dataShards || int(s.ParityShards) != p.parityShards ||
		s.Compressed != p.compressed || int(s.PayloadSize) != p.payloadSize {
		return nil, false, ErrShardMismatch
	}
	if p.parts[s.Index] != nil {
		return nil, false, nil // duplicate shard
	}
	p.parts[s.Index] = s.Data
	p.have++

	if p.have < p.dataShards {
		return nil, false, nil
	}

	body, err := rebuild(p)
	if err != nil {
		return nil, false, err
	}
	delete(a.pending, s.PayloadID)

	if p.compressed {
		payload, err = decompress(body)
		if err != nil {
			return nil, false, err
		}
		return payload, true, nil
	}
	return body, true, nil
}

// Pending returns the number of payloads still being assembled.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Drop discards partial state for a payload that will never complete.
func (a *Assembler) Drop(payloadID uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, payloadID)
}

func rebuild(p *pending) ([]byte, error) {
	enc, err := reedsolomon.New(p.dataShards, p.parityShards)
	if err != nil {
		return nil, err
	}
	if err := enc.ReconstructData(p.parts); err != nil {
		if err == reedsolomon.ErrTooFewShards {
			return nil, ErrTooManyLost
		}
		return nil, err
	}

	body := make([]byte, 0, p.payloadSize)
	for i := 0; i < p.dataShards && len(body) < p.payloadSize; i++ {
		remaining := p.payloadSize - len(body)
		if remaining >= len(p.parts[i]) {
			body = append(body, p.parts[i]...)
		} else {
			body = append(body, p.parts[i][:remaining]...)
		}
	}
	return body, nil
}
