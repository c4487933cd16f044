package fthub

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"github.com/haldane-labs/confrelay/internal/config"
	"github.com/haldane-labs/confrelay/internal/wire"
)

// transfer tracks one in-progress incoming file, keyed by the sending
// client's UDP address. last_acked is the idempotence cursor:
// once a fragment has been written and acked, replaying it — the
// inevitable result of the sender re-sending after a lost ACK — just
// re-sends the ACK without writing the payload again. A completed
// transfer stays in the map, so a replayed final fragment is re-acked
// too, until the same address sends a new handshake.
type transfer struct {
	filename   string
	total      int
	lastAcked  int
	f          *os.File
}

// Receiver is the server side of the fragmented transfer protocol: it
// accepts the "ftp" handshake from any sender, then reassembles
// fragments strictly in order into OutputDir.
type Receiver struct {
	cfg    config.ReceiverConfig
	logger *slog.Logger
	rng    *rand.Rand
	rngMu  sync.Mutex

	mu        sync.Mutex
	transfers map[string]*transfer
}

func NewReceiver(cfg config.ReceiverConfig, logger *slog.Logger) *Receiver {
	return &Receiver{
		cfg:       cfg,
		logger:    logger.With("component", "ftp_receiver"),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		transfers: make(map[string]*transfer),
	}
}

// Serve listens on listenAddr and processes datagrams until ctx is
// cancelled.
func (r *Receiver) Serve(ctx context.Context, listenAddr string) error {
	pc, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listenAddr, err)
	}
	defer pc.Close()

	return r.ServeConn(ctx, pc)
}

// ServeConn runs the receive loop over an already-bound packet
// connection, letting callers (tests in particular) obtain the actual
// listen address before serving starts.
func (r *Receiver) ServeConn(ctx context.Context, pc net.PacketConn) error {
	r.logger.Info("file-transfer receiver listening", "address", pc.LocalAddr().String(), "output_dir", r.cfg.OutputDir, "drop_rate", r.cfg.DropRate)

	go func() {
		<-ctx.Done()
		pc.Close()
	}()

	buf := make([]byte, wire.MaxDatagram)
	for {
		n, remote, err := pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("reading datagram: %w", err)
			}
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		r.handleDatagram(pc, remote, datagram)
	}
}

func (r *Receiver) handleDatagram(pc net.PacketConn, remote net.Addr, datagram []byte) {
	if r.simulateDrop() {
		r.logger.Debug("simulated loss, dropping datagram", "remote", remote.String())
		return
	}

	if string(datagram) == wire.HandshakeHello {
		r.handleHandshake(pc, remote)
		return
	}

	r.handleFragment(pc, remote, datagram)
}

func (r *Receiver) simulateDrop() bool {
	if r.cfg.DropRate <= 0 {
		return false
	}
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.Float64() < r.cfg.DropRate
}

func (r *Receiver) handleHandshake(pc net.PacketConn, remote net.Addr) {
	key := remote.String()

	r.mu.Lock()
	r.transfers[key] = &transfer{lastAcked: 0}
	r.mu.Unlock()

	r.logger.Info("handshake accepted", "remote", key)
	r.reply(pc, remote, []byte(wire.HandshakeYes))
}

func (r *Receiver) handleFragment(pc net.PacketConn, remote net.Addr, datagram []byte) {
	key := remote.String()

	r.mu.Lock()
	t, ok := r.transfers[key]
	r.mu.Unlock()
	if !ok {
		r.logger.Warn("fragment from unknown sender, dropping", "remote", key)
		return
	}

	header, payload, err := wire.DecodeFragment(datagram)
	if err != nil {
		r.logger.Warn("malformed fragment header, dropping", "remote", key, "error", err)
		return
	}
	if err := wire.ValidateFilename(header.Filename); err != nil {
		r.logger.Warn("rejecting fragment with invalid filename", "remote", key, "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t.f == nil {
		outPath, err := resolveOutputPath(r.cfg.OutputDir, header.Filename)
		if err != nil {
			r.logger.Warn("rejecting fragment, path escapes output dir", "remote", key, "error", err)
			return
		}
		if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
			r.logger.Error("creating output dir", "error", err)
			return
		}
		f, err := os.Create(outPath)
		if err != nil {
			r.logger.Error("creating output file", "path", outPath, "error", err)
			return
		}
		t.f = f
		t.filename = header.Filename
		t.total = header.Total
	} else if header.Total != t.total || header.Filename != t.filename {
		r.logger.Warn("fragment header does not match open transfer, dropping", "remote", key, "file", t.filename, "got_file", header.Filename, "total", t.total, "got_total", header.Total)
		return
	}

	if header.No <= t.lastAcked {
		// Retransmission of an already-written fragment: the sender's
		// view is that its previous ACK was lost. Re-ack without
		// rewriting the payload.
		r.reply(pc, remote, []byte(wire.FragmentAck))
		return
	}
	if header.No != t.lastAcked+1 {
		r.logger.Warn("out-of-order fragment, dropping", "remote", key, "expected", t.lastAcked+1, "got", header.No)
		return
	}

	if _, err := t.f.Write(payload); err != nil {
		r.logger.Error("writing fragment payload", "remote", key, "error", err)
		return
	}
	t.lastAcked = header.No

	r.reply(pc, remote, []byte(wire.FragmentAck))

	if t.lastAcked == t.total {
		t.f.Close()
		r.logger.Info("transfer complete", "remote", key, "file", t.filename)
	}
}

func (r *Receiver) reply(pc net.PacketConn, remote net.Addr, payload []byte) {
	if _, err := pc.WriteTo(payload, remote); err != nil {
		r.logger.Warn("failed to send reply", "remote", remote.String(), "error", err)
	}
}
