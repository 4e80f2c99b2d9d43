package session

import (
	"errors"
	"time"

	"github.com/zfifteen/hrot/hrot/crypto"
	"github.com/zfifteen/hrot/hrot/wire"
)

const (
	// DefaultDriftTolerance is the number of adjacent windows a
	// receiver accepts to absorb clock skew.
	DefaultDriftTolerance = 1
	// DefaultKeyRetention is how many windows of keys and replay
	// state are retained around the current window.
	DefaultKeyRetention = 3
)

var (
	ErrEmptyChannel     = errors.New("session: channel identifier is empty")
	ErrInvalidRole      = errors.New("session: invalid role")
	ErrInvalidRotation  = errors.New("session: rotation duration must be at least one millisecond")
	ErrInvalidDrift     = errors.New("session: drift tolerance must be non-negative")
	ErrInvalidRetention = errors.New("session: key retention must cover drift tolerance")
	ErrInvalidAlgorithm = errors.New("session: unsupported algorithm")
)

// Config fixes the parameters of a channel for the session lifetime.
// The shared secret is provisioned out-of-band; rotating it is an
// operational event, not something a session does.
type Config struct {
	Secret    []byte        // pre-shared secret, >= 32 bytes
	ChannelID []byte        // stable conversation identifier
	Role      crypto.Role   // this party's direction
	Rotation  time.Duration // key rotation window duration

	DriftToleranceWindows int // adjacent windows accepted on receive
	KeyRetentionWindows   int // windows of keys/replay state retained
	Alg                   wire.AlgID
}

// DefaultConfig returns a config with the default drift tolerance,
// retention, and algorithm filled in.
func DefaultConfig(secret, channelID []byte, role crypto.Role, rotation time.Duration) Config {
	return Config{
		Secret:                secret,
		ChannelID:             channelID,
		Role:                  role,
		Rotation:              rotation,
		DriftToleranceWindows: DefaultDriftTolerance,
		KeyRetentionWindows:   DefaultKeyRetention,
		Alg:                   wire.AlgXChaCha20Poly1305,
	}
}

func (c Config) validate() error {
	if err := crypto.CheckSecret(c.Secret); err != nil {
		return err
	}
	if len(c.ChannelID) == 0 {
		return ErrEmptyChannel
	}
	if !c.Role.Valid() {
		return ErrInvalidRole
	}
	// Windows are indexed in whole milliseconds, so anything shorter
	// than a millisecond has no window to land in.
	if c.Rotation < time.Millisecond {
		return ErrInvalidRotation
	}
	if c.DriftToleranceWindows < 0 {
		return ErrInvalidDrift
	}
	if c.KeyRetentionWindows < c.DriftToleranceWindows || c.KeyRetentionWindows < 1 {
		return ErrInvalidRetention
	}
	if !c.Alg.Valid() {
		return ErrInvalidAlgorithm
	}
	return nil
}

// WindowAt computes the rotation window containing now. Rotations
// shorter than a millisecond are treated as one millisecond; windows
// are indexed in whole milliseconds.
func WindowAt(now time.Time, rotation time.Duration) uint64 {
	ms := now.UnixMilli()
	if ms < 0 {
		return 0
	}
	per := rotation.Milliseconds()
	if per < 1 {
		per = 1
	}
	return uint64(ms) / uint64(per)
}

// TimeUntilRotation reports how long the current window's keys remain
// in effect.
func TimeUntilRotation(now time.Time, rotation time.Duration) time.Duration {
	per := rotation.Milliseconds()
	if per < 1 {
		per = 1
	}
	window := WindowAt(now, rotation)
	next := time.UnixMilli(int64((window + 1) * uint64(per)))
	return next.Sub(now)
}
