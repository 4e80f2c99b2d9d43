package session

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/zfifteen/hrot/hrot/crypto"
	"github.com/zfifteen/hrot/hrot/wire"
)

func testSecret() []byte {
	return make([]byte, 32) // 32 zero bytes, per the reference scenario
}

func testPair(t *testing.T, rotation time.Duration) (*Session, *Session) {
	t.Helper()
	sender, err := NewSession(DefaultConfig(testSecret(), []byte("test"), crypto.RoleInitiator, rotation))
	if err != nil {
		t.Fatalf("NewSession sender: %v", err)
	}
	receiver, err := NewSession(DefaultConfig(testSecret(), []byte("test"), crypto.RoleResponder, rotation))
	if err != nil {
		t.Fatalf("NewSession receiver: %v", err)
	}
	return sender, receiver
}

func at(ms int64) time.Time { return time.UnixMilli(ms) }

func TestSendReceiveRoundTrip(t *testing.T) {
	sender, receiver := testPair(t, time.Second)

	plaintext := []byte("hello hyper-rotation")
	msg, err := sender.Send(plaintext, at(500))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(msg) != wire.HeaderSize+len(plaintext)+wire.TagSize {
		t.Fatalf("unexpected wire size %d", len(msg))
	}

	got, err := receiver.Receive(msg, at(500))
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("plaintext mismatch")
	}
}

func TestBothDirectionsUseDistinctKeys(t *testing.T) {
	alice, bob := testPair(t, time.Second)

	toBob, err := alice.Send([]byte("from alice"), at(100))
	if err != nil {
		t.Fatalf("alice Send: %v", err)
	}
	toAlice, err := bob.Send([]byte("from bob"), at(100))
	if err != nil {
		t.Fatalf("bob Send: %v", err)
	}

	if _, err := bob.Receive(toBob, at(100)); err != nil {
		t.Fatalf("bob Receive: %v", err)
	}
	if _, err := alice.Receive(toAlice, at(100)); err != nil {
		t.Fatalf("alice Receive: %v", err)
	}

	// A direction must not decrypt its own traffic: same channel and
	// window, but the role-separated key differs.
	if _, err := alice.Receive(toBob, at(100)); !errors.Is(err, crypto.ErrAuthenticationFailed) {
		t.Fatalf("reflected message accepted: %v", err)
	}
}

func TestDriftToleranceMatrix(t *testing.T) {
	// rotation 1s, drift 1: a message stamped window w is accepted at
	// local windows w-1, w, w+1 and rejected at w±2.
	for _, tc := range []struct {
		recvAt time.Time
		ok     bool
	}{
		{at(3500), false}, // local window 3, stamped 5
		{at(4500), true},  // local window 4
		{at(5500), true},  // local window 5
		{at(6500), true},  // local window 6
		{at(7500), false}, // local window 7
	} {
		sender, receiver := testPair(t, time.Second)
		msg, err := sender.Send([]byte("drift"), at(5500)) // window 5
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		_, err = receiver.Receive(msg, tc.recvAt)
		if tc.ok && err != nil {
			t.Fatalf("receive at %v failed: %v", tc.recvAt, err)
		}
		if !tc.ok && !errors.Is(err, ErrWindowOutOfRange) {
			t.Fatalf("receive at %v: expected ErrWindowOutOfRange, got %v", tc.recvAt, err)
		}
	}
}

func TestReferenceScenario(t *testing.T) {
	// rotation=1000ms, secret=32 zero bytes, channel="test":
	// send at t=500 (window 0), accept at t=1400 (window 1, drift 1),
	// reject at t=3400 (window 3).
	sender, receiver := testPair(t, time.Second)

	msg, err := sender.Send([]byte("scenario"), at(500))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	header, err := wire.DecodeHeader(msg)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if header.WindowID != 0 {
		t.Fatalf("send at t=500 stamped window %d, want 0", header.WindowID)
	}

	if _, err := receiver.Receive(msg, at(1400)); err != nil {
		t.Fatalf("receive at t=1400 failed: %v", err)
	}

	// Fresh receiver so the replay guard does not mask the drift check.
	_, late := testPair(t, time.Second)
	if _, err := late.Receive(msg, at(3400)); !errors.Is(err, ErrWindowOutOfRange) {
		t.Fatalf("receive at t=3400: expected ErrWindowOutOfRange, got %v", err)
	}
}

func TestCountersIncreaseWithinWindow(t *testing.T) {
	sender, _ := testPair(t, time.Second)

	m0, err := sender.Send([]byte("first"), at(100))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	m1, err := sender.Send([]byte("second"), at(200))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	h0, _ := wire.DecodeHeader(m0)
	h1, _ := wire.DecodeHeader(m1)
	if h0.Counter != 0 || h1.Counter != 1 {
		t.Fatalf("counters = %d, %d; want 0, 1", h0.Counter, h1.Counter)
	}
	if h0.WindowID != h1.WindowID {
		t.Fatalf("same-window sends landed in different windows")
	}
}

func TestReplayDetected(t *testing.T) {
	sender, receiver := testPair(t, time.Second)

	msg, err := sender.Send([]byte("once only"), at(500))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := receiver.Receive(msg, at(500)); err != nil {
		t.Fatalf("first receive failed: %v", err)
	}
	if _, err := receiver.Receive(msg, at(600)); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("expected ErrReplayDetected, got %v", err)
	}
}

func TestOutOfOrderDeliveryAccepted(t *testing.T) {
	sender, receiver := testPair(t, time.Second)

	m0, _ := sender.Send([]byte("zero"), at(100))
	m1, _ := sender.Send([]byte("one"), at(200))

	if _, err := receiver.Receive(m1, at(300)); err != nil {
		t.Fatalf("later message rejected: %v", err)
	}
	if _, err := receiver.Receive(m0, at(300)); err != nil {
		t.Fatalf("reordered earlier message rejected: %v", err)
	}
	if _, err := receiver.Receive(m0, at(400)); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("replay of reordered message accepted: %v", err)
	}
}

func TestTamperedMessageLeavesNoReplayState(t *testing.T) {
	sender, receiver := testPair(t, time.Second)

	msg, err := sender.Send([]byte("payload"), at(500))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Tampered copy fails authentication and must not poison the
	// replay guard against the genuine message.
	tampered := append([]byte(nil), msg...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := receiver.Receive(tampered, at(500)); !errors.Is(err, crypto.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if _, err := receiver.Receive(msg, at(500)); err != nil {
		t.Fatalf("genuine message rejected after tampered copy: %v", err)
	}
}

func TestHeaderBitFlipsRejected(t *testing.T) {
	sender, receiver := testPair(t, time.Second)
	msg, err := sender.Send([]byte("bound to header"), at(500))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Any header mutation must fail somewhere in the pipeline (codec,
	// drift bound, or authentication) and never yield plaintext.
	for i := 0; i < wire.HeaderSize; i++ {
		mangled := append([]byte(nil), msg...)
		mangled[i] ^= 0x01
		if pt, err := receiver.Receive(mangled, at(500)); err == nil {
			t.Fatalf("header byte %d flip yielded plaintext %q", i, pt)
		}
	}
}

func TestWrongChannelRejected(t *testing.T) {
	sender, err := NewSession(DefaultConfig(testSecret(), []byte("alpha"), crypto.RoleInitiator, time.Second))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	receiver, err := NewSession(DefaultConfig(testSecret(), []byte("beta"), crypto.RoleResponder, time.Second))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	msg, err := sender.Send([]byte("misrouted"), at(100))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := receiver.Receive(msg, at(100)); !errors.Is(err, ErrWrongChannel) {
		t.Fatalf("expected ErrWrongChannel, got %v", err)
	}
}

func TestMalformedInputRejected(t *testing.T) {
	_, receiver := testPair(t, time.Second)
	if _, err := receiver.Receive([]byte("short"), at(0)); !errors.Is(err, wire.ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestBoundedStateOverManyWindows(t *testing.T) {
	sender, receiver := testPair(t, time.Second)

	// Drive traffic across many windows; retained state must stay
	// bounded by the retention horizon, not session duration.
	for w := int64(0); w < 200; w++ {
		now := at(w*1000 + 500)
		msg, err := sender.Send([]byte("tick"), now)
		if err != nil {
			t.Fatalf("Send window %d: %v", w, err)
		}
		if _, err := receiver.Receive(msg, now); err != nil {
			t.Fatalf("Receive window %d: %v", w, err)
		}
	}

	if n := receiver.guard.TrackedWindows(); n > 2*DefaultKeyRetention+1 {
		t.Fatalf("replay guard tracks %d windows", n)
	}
	if n := receiver.cache.Len(); n > 2*(2*DefaultKeyRetention+1) {
		t.Fatalf("key cache holds %d entries", n)
	}
	if n := sender.counters.Tracked(); n > DefaultKeyRetention+1 {
		t.Fatalf("sender counters track %d windows", n)
	}
}

func TestConfigValidation(t *testing.T) {
	base := DefaultConfig(testSecret(), []byte("cfg"), crypto.RoleInitiator, time.Second)

	short := base
	short.Secret = make([]byte, 16)
	if _, err := NewSession(short); !errors.Is(err, crypto.ErrSecretTooShort) {
		t.Fatalf("short secret: %v", err)
	}

	noChannel := base
	noChannel.ChannelID = nil
	if _, err := NewSession(noChannel); !errors.Is(err, ErrEmptyChannel) {
		t.Fatalf("empty channel: %v", err)
	}

	badRole := base
	badRole.Role = 0
	if _, err := NewSession(badRole); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("bad role: %v", err)
	}

	badRotation := base
	badRotation.Rotation = 0
	if _, err := NewSession(badRotation); !errors.Is(err, ErrInvalidRotation) {
		t.Fatalf("bad rotation: %v", err)
	}

	subMilli := base
	subMilli.Rotation = 500 * time.Microsecond
	if _, err := NewSession(subMilli); !errors.Is(err, ErrInvalidRotation) {
		t.Fatalf("sub-millisecond rotation: %v", err)
	}

	badRetention := base
	badRetention.DriftToleranceWindows = 5
	badRetention.KeyRetentionWindows = 2
	if _, err := NewSession(badRetention); !errors.Is(err, ErrInvalidRetention) {
		t.Fatalf("retention below drift: %v", err)
	}

	badAlg := base
	badAlg.Alg = 0x7f
	if _, err := NewSession(badAlg); !errors.Is(err, ErrInvalidAlgorithm) {
		t.Fatalf("bad alg: %v", err)
	}
}

func TestWindowMath(t *testing.T) {
	if w := WindowAt(at(500), time.Second); w != 0 {
		t.Fatalf("WindowAt(500ms) = %d", w)
	}
	if w := WindowAt(at(1400), time.Second); w != 1 {
		t.Fatalf("WindowAt(1400ms) = %d", w)
	}
	if d := TimeUntilRotation(at(400), time.Second); d != 600*time.Millisecond {
		t.Fatalf("TimeUntilRotation = %v", d)
	}
	// Sub-millisecond rotations floor to one millisecond rather than
	// dividing by zero.
	if w := WindowAt(at(500), 500*time.Microsecond); w != 500 {
		t.Fatalf("WindowAt(500ms, 500µs) = %d", w)
	}
	if d := TimeUntilRotation(at(500), 500*time.Microsecond); d != time.Millisecond {
		t.Fatalf("TimeUntilRotation sub-ms = %v", d)
	}
}
