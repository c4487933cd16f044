package fthub

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haldane-labs/confrelay/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startReceiver(t *testing.T, cfg config.ReceiverConfig) (addr string, stop func()) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	r := NewReceiver(cfg, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go r.ServeConn(ctx, pc)
	return pc.LocalAddr().String(), cancel
}

func writeTempFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSendFileSingleFragment(t *testing.T) {
	outDir := t.TempDir()
	addr, stop := startReceiver(t, config.ReceiverConfig{OutputDir: outDir})
	defer stop()

	srcDir := t.TempDir()
	path := writeTempFile(t, srcDir, "note.txt", 100)

	sender := NewSender(config.DefaultSenderConfig(), testLogger())
	if err := sender.SendFile(context.Background(), addr, path); err != nil {
		t.Fatalf("SendFile: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	got, err := os.ReadFile(filepath.Join(outDir, "note.txt"))
	if err != nil {
		t.Fatalf("reading received file: %v", err)
	}
	want, _ := os.ReadFile(path)
	if !bytes.Equal(got, want) {
		t.Fatalf("received file contents mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestSendFileMultiFragment(t *testing.T) {
	outDir := t.TempDir()
	addr, stop := startReceiver(t, config.ReceiverConfig{OutputDir: outDir})
	defer stop()

	srcDir := t.TempDir()
	path := writeTempFile(t, srcDir, "bigfile.bin", 3500) // 4 fragments at MaxChunk=1000

	sender := NewSender(config.DefaultSenderConfig(), testLogger())
	if err := sender.SendFile(context.Background(), addr, path); err != nil {
		t.Fatalf("SendFile: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	got, err := os.ReadFile(filepath.Join(outDir, "bigfile.bin"))
	if err != nil {
		t.Fatalf("reading received file: %v", err)
	}
	want, _ := os.ReadFile(path)
	if !bytes.Equal(got, want) {
		t.Fatalf("received file contents mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestSendFileEmptyRejected(t *testing.T) {
	outDir := t.TempDir()
	addr, stop := startReceiver(t, config.ReceiverConfig{OutputDir: outDir})
	defer stop()

	srcDir := t.TempDir()
	path := writeTempFile(t, srcDir, "empty.bin", 0)

	sender := NewSender(config.DefaultSenderConfig(), testLogger())
	if err := sender.SendFile(context.Background(), addr, path); err == nil {
		t.Fatal("expected empty file to be rejected")
	}
}

func TestSendFileWithSimulatedLoss(t *testing.T) {
	outDir := t.TempDir()
	addr, stop := startReceiver(t, config.ReceiverConfig{OutputDir: outDir, DropRate: 0.3})
	defer stop()

	srcDir := t.TempDir()
	path := writeTempFile(t, srcDir, "lossy.bin", 2500)

	cfg := config.DefaultSenderConfig()
	sender := NewSender(cfg, testLogger())
	if err := sender.SendFile(context.Background(), addr, path); err != nil {
		t.Fatalf("SendFile under simulated loss: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	got, err := os.ReadFile(filepath.Join(outDir, "lossy.bin"))
	if err != nil {
		t.Fatalf("reading received file: %v", err)
	}
	want, _ := os.ReadFile(path)
	if !bytes.Equal(got, want) {
		t.Fatalf("received file contents mismatch under simulated loss")
	}
}

// TestSendFileWithRateLimit exercises Sender with RateLimitBps>0 end to
// end over a real UDP receiver, guarding against ThrottledWriter
// splitting a fragment across multiple packets and corrupting output.
func TestSendFileWithRateLimit(t *testing.T) {
	outDir := t.TempDir()
	addr, stop := startReceiver(t, config.ReceiverConfig{OutputDir: outDir})
	defer stop()

	srcDir := t.TempDir()
	path := writeTempFile(t, srcDir, "throttled.bin", 2500) // 3 fragments

	cfg := config.DefaultSenderConfig()
	cfg.RateLimitBps = 200_000
	sender := NewSender(cfg, testLogger())
	if err := sender.SendFile(context.Background(), addr, path); err != nil {
		t.Fatalf("SendFile with rate limit: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	got, err := os.ReadFile(filepath.Join(outDir, "throttled.bin"))
	if err != nil {
		t.Fatalf("reading received file: %v", err)
	}
	want, _ := os.ReadFile(path)
	if !bytes.Equal(got, want) {
		t.Fatalf("received file contents mismatch with rate limiting enabled")
	}
}

func TestDuplicateFragmentIsIdempotent(t *testing.T) {
	outDir := t.TempDir()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	r := NewReceiver(config.ReceiverConfig{OutputDir: outDir}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.ServeConn(ctx, pc)

	clientConn, err := net.Dial("udp", pc.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer clientConn.Close()
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))

	sendAndWait := func(payload []byte) string {
		clientConn.Write(payload)
		buf := make([]byte, 64)
		n, err := clientConn.Read(buf)
		if err != nil {
			t.Fatalf("reading reply: %v", err)
		}
		return string(buf[:n])
	}

	if got := sendAndWait([]byte("ftp")); got != "yes" {
		t.Fatalf("handshake reply = %q", got)
	}

	frag := encodeTestFragment(t, 1, 1, "dup.txt", []byte("hello"))
	if got := sendAndWait(frag); got != "ACK" {
		t.Fatalf("first fragment ack = %q", got)
	}
	// Replay the same fragment — simulates the sender not having seen the ACK.
	if got := sendAndWait(frag); got != "ACK" {
		t.Fatalf("duplicate fragment ack = %q", got)
	}

	time.Sleep(20 * time.Millisecond)
	data, err := os.ReadFile(filepath.Join(outDir, "dup.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected payload written exactly once, got %q", data)
	}
}
