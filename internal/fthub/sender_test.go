package fthub

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/haldane-labs/confrelay/internal/config"
	"github.com/haldane-labs/confrelay/internal/wire"
)

func encodeTestFragment(t *testing.T, total, no int, filename string, payload []byte) []byte {
	t.Helper()
	h := wire.FragmentHeader{Total: total, No: no, DataSize: len(payload), Filename: filename}
	return wire.EncodeFragment(h, payload)
}

// fakeServer mimics one side of the protocol to test Sender's retry
// behavior without a full Receiver.
func fakeServer(t *testing.T, reply func(datagram []byte) []byte) (addr string, stop func()) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		buf := make([]byte, wire.MaxDatagram)
		for {
			select {
			case <-done:
				return
			default:
			}
			pc.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
			n, remote, err := pc.ReadFrom(buf)
			if err != nil {
				continue
			}
			if r := reply(buf[:n]); r != nil {
				pc.WriteTo(r, remote)
			}
		}
	}()
	return pc.LocalAddr().String(), func() { close(done); pc.Close() }
}

func TestSenderRetransmitsOnMissingHandshakeReply(t *testing.T) {
	var handshakes, fragments int
	addr, stop := fakeServer(t, func(d []byte) []byte {
		if string(d) == wire.HandshakeHello {
			handshakes++
			if handshakes < 2 {
				return nil // drop the first handshake reply to force a retry
			}
			return []byte(wire.HandshakeYes)
		}
		fragments++
		return []byte(wire.FragmentAck)
	})
	defer stop()

	dir := t.TempDir()
	path := writeTempFile(t, dir, "retry.bin", 10)

	cfg := config.SenderConfig{MaxRetries: 5, InitialTimeout: 50 * time.Millisecond, MaxTimeout: 200 * time.Millisecond}
	sender := NewSender(cfg, testLogger())
	if err := sender.SendFile(context.Background(), addr, path); err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if handshakes < 2 {
		t.Fatalf("expected at least 2 handshake attempts, got %d", handshakes)
	}
	if fragments != 1 {
		t.Fatalf("expected exactly 1 fragment sent, got %d", fragments)
	}
}

func TestSenderGivesUpAfterMaxRetries(t *testing.T) {
	addr, stop := fakeServer(t, func(d []byte) []byte { return nil }) // never reply
	defer stop()

	dir := t.TempDir()
	path := writeTempFile(t, dir, "never.bin", 10)

	cfg := config.SenderConfig{MaxRetries: 2, InitialTimeout: 20 * time.Millisecond, MaxTimeout: 40 * time.Millisecond}
	sender := NewSender(cfg, testLogger())
	err := sender.SendFile(context.Background(), addr, path)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
}

func TestSenderFailsFastOnHandshakeRejection(t *testing.T) {
	var handshakes, fragments int
	addr, stop := fakeServer(t, func(d []byte) []byte {
		if string(d) == wire.HandshakeHello {
			handshakes++
			return []byte("no") // present but wrong: fatal, not retried
		}
		fragments++
		return []byte(wire.FragmentAck)
	})
	defer stop()

	dir := t.TempDir()
	path := writeTempFile(t, dir, "rejected.bin", 10)

	cfg := config.SenderConfig{MaxRetries: 5, InitialTimeout: 20 * time.Millisecond, MaxTimeout: 100 * time.Millisecond}
	sender := NewSender(cfg, testLogger())
	err := sender.SendFile(context.Background(), addr, path)
	if !errors.Is(err, ErrHandshakeRejected) {
		t.Fatalf("expected ErrHandshakeRejected, got %v", err)
	}
	if handshakes != 1 {
		t.Fatalf("expected exactly 1 handshake attempt (no retry on a wrong reply), got %d", handshakes)
	}
	if fragments != 0 {
		t.Fatalf("expected no fragments sent after a rejected handshake, got %d", fragments)
	}
}

func TestSenderRejectsInvalidFilename(t *testing.T) {
	addr, stop := fakeServer(t, func(d []byte) []byte { return []byte(wire.HandshakeYes) })
	defer stop()

	dir := t.TempDir()
	// A filename containing a colon is invalid on the wire — construct
	// the path so the base name embeds one.
	path := dir + string([]byte{'/'}) + "bad:name.bin"
	writeTempFile(t, dir, "bad:name.bin", 10)

	sender := NewSender(config.DefaultSenderConfig(), testLogger())
	if err := sender.SendFile(context.Background(), addr, path); err == nil {
		t.Fatal("expected invalid filename to be rejected")
	}
}

func TestEncodeDecodeFragmentRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 37)
	datagram := encodeTestFragment(t, 3, 2, "x.bin", payload)

	h, got, err := wire.DecodeFragment(datagram)
	if err != nil {
		t.Fatal(err)
	}
	if h.Total != 3 || h.No != 2 || h.DataSize != 37 || h.Filename != "x.bin" {
		t.Fatalf("header mismatch: %+v", h)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload mismatch")
	}
}
