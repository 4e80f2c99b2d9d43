package bulk

import (
	"encoding/binary"
	"errors"
)

var ErrMalformedShard = errors.New("bulk: malformed shard")

const (
	shardHeaderSize = 16
	flagCompressed  = 0x01
)

// Shard is one erasure-coded fragment of a payload. Shards travel as
// ordinary sealed messages; any DataShards of the Total suffice to
// rebuild the payload.
//
// Layout (big endian):
//
//	4 bytes: payload id (groups shards of one payload)
//	1 byte:  shard index
//	1 byte:  data shard count
//	1 byte:  parity shard count
//	1 byte:  flags (bit 0: payload is LZ4-compressed)
//	4 bytes: payload size before erasure padding
//	4 bytes: shard data length
//	N bytes: shard data
type Shard struct {
	PayloadID    uint32
	Index        uint8
	DataShards   uint8
	ParityShards uint8
	Compressed   bool
	PayloadSize  uint32
	Data         []byte
}

// Encode serializes the shard for transmission.
func (s Shard) Encode() []byte {
	buf := make([]byte, shardHeaderSize+len(s.Data))
	binary.BigEndian.PutUint32(buf[0:4], s.PayloadID)
	buf[4] = s.Index
	buf[5] = s.DataShards
	buf[6] = s.ParityShards
	if s.Compressed {
		buf[7] = flagCompressed
	}
	binary.BigEndian.PutUint32(buf[8:12], s.PayloadSize)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(s.Data)))
	copy(buf[shardHeaderSize:], s.Data)
	return buf
}

// DecodeShard parses a shard received from the wire.
func DecodeShard(data []byte) (Shard, error) {
	if len(data) < shardHeaderSize {
		return Shard{}, ErrMalformedShard
	}
	s := Shard{
		PayloadID:    binary.BigEndian.Uint32(data[0:4]),
		Index:        data[4],
		DataShards:   data[5],
		ParityShards: data[6],
		Compressed:   data[7]&flagCompressed != 0,
		PayloadSize:  binary.BigEndian.Uint32(data[8:12]),
	}
	dataLen := binary.BigEndian.Uint32(data[12:16])
	if int(dataLen) != len(data)-shardHeaderSize {
		return Shard{}, ErrMalformedShard
	}
	if s.DataShards == 0 || int(s.Index) >= int(s.DataShards)+int(s.ParityShards) {
		return Shard{}, ErrMalformedShard
	}
	s.Data = append([]byte(nil), data[shardHeaderSize:]...)
	return s, nil
}
