package fthub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/haldane-labs/confrelay/internal/config"
	"github.com/haldane-labs/confrelay/internal/wire"
)

// ErrMaxRetriesExceeded is returned when a handshake or fragment never
// gets an expected reply within cfg.MaxRetries attempts.
var ErrMaxRetriesExceeded = errors.New("fthub: max retries exceeded")

// ErrHandshakeRejected is returned when the receiver answers the initial
// handshake with anything other than "yes". Unlike a missing fragment
// ACK, a present-but-wrong handshake reply is not retried — it is a
// fatal failure.
var ErrHandshakeRejected = errors.New("fthub: handshake rejected")

// Sender drives the client side of the fragmented transfer protocol: a
// handshake, then a strict stop-and-wait loop sending one fragment at a
// time and blocking for its ACK before advancing.
type Sender struct {
	cfg    config.SenderConfig
	logger *slog.Logger
}

func NewSender(cfg config.SenderConfig, logger *slog.Logger) *Sender {
	return &Sender{cfg: cfg, logger: logger.With("component", "ftp_sender")}
}

// SendFile transfers the file at path to addr over UDP. It blocks until
// the transfer completes or a step exhausts its retry budget.
func (s *Sender) SendFile(ctx context.Context, addr, path string) error {
	filename := filepath.Base(path)
	if err := wire.ValidateFilename(filename); err != nil {
		return fmt.Errorf("invalid filename %q: %w", filename, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	total := wire.TotalFragments(info.Size(), wire.MaxChunk)
	if total == 0 {
		return fmt.Errorf("refusing to send empty file %s", path)
	}

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	var out io.Writer = conn
	if s.cfg.RateLimitBps > 0 {
		out = NewThrottledWriter(ctx, conn, s.cfg.RateLimitBps)
	}

	s.logger.Info("starting transfer", "addr", addr, "file", filename, "fragments", total)

	if err := s.handshake(conn); err != nil {
		return fmt.Errorf("handshake with %s: %w", addr, err)
	}

	buf := make([]byte, wire.MaxChunk)
	for fragNo := 1; fragNo <= total; fragNo++ {
		n, rerr := f.Read(buf)
		if rerr != nil && n == 0 {
			return fmt.Errorf("reading fragment %d/%d: %w", fragNo, total, rerr)
		}
		header := wire.FragmentHeader{Total: total, No: fragNo, DataSize: n, Filename: filename}
		datagram := wire.EncodeFragment(header, buf[:n])

		if err := s.sendFragment(conn, out, datagram); err != nil {
			return fmt.Errorf("sending fragment %d/%d: %w", fragNo, total, err)
		}
	}

	s.logger.Info("transfer complete", "addr", addr, "file", filename)
	return nil
}

func (s *Sender) handshake(conn net.Conn) error {
	_, err := s.sendAndAwait(conn, conn, []byte(wire.HandshakeHello), func(b []byte) bool {
		return string(b) == wire.HandshakeYes
	}, false)
	return err
}

func (s *Sender) sendFragment(conn net.Conn, out io.Writer, datagram []byte) error {
	_, err := s.sendAndAwait(conn, out, datagram, func(b []byte) bool {
		return string(b) == wire.FragmentAck
	}, true)
	return err
}

// sendAndAwait implements the bounded stop-and-wait retry loop: write
// the message, wait for a reply matching want within a timeout that
// doubles from InitialTimeout up to MaxTimeout, and re-send after a
// timeout or read error, making at most MaxRetries attempts in all. A
// write error ends the exchange at once, without a retry.
//
// retryOnMismatch controls what happens when a reply arrives but does
// not satisfy want: the fragment-ACK step retries (a non-ACK reply is
// treated the same as none), but the handshake step does not — a
// present-but-wrong handshake reply is a fatal failure, not something to
// retry past.
func (s *Sender) sendAndAwait(conn net.Conn, out io.Writer, payload []byte, want func([]byte) bool, retryOnMismatch bool) ([]byte, error) {
	timeout := s.cfg.InitialTimeout
	reply := make([]byte, wire.MaxDatagram)

	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if _, err := out.Write(payload); err != nil {
			return nil, fmt.Errorf("writing datagram: %w", err)
		}

		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("setting read deadline: %w", err)
		}
		n, err := conn.Read(reply)
		if err == nil {
			if want(reply[:n]) {
				return reply[:n], nil
			}
			if !retryOnMismatch {
				return nil, fmt.Errorf("%w: got %q", ErrHandshakeRejected, reply[:n])
			}
		} else {
			s.logger.Debug("no reply, retrying", "attempt", attempt+1, "timeout", timeout)
		}

		timeout *= 2
		if timeout > s.cfg.MaxTimeout {
			timeout = s.cfg.MaxTimeout
		}
	}

	return nil, ErrMaxRetriesExceeded
}

