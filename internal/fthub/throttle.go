// Package fthub implements the fragmented file-transfer protocol: a
// UDP stop-and-wait sender and receiver exchanging textual-header
// fragments with bounded retransmission.
package fthub

import (
	"context"
	"io"

	"golang.org/x/time/rate"

	"github.com/haldane-labs/confrelay/internal/wire"
)

// maxBurstSize is the token-bucket burst size. It must be at least
// wire.MaxDatagram: the sender always hands a whole encoded fragment
// (header plus payload, up to one datagram) to a single Write call, and
// splitting that call across multiple underlying writes would turn one
// logical fragment into multiple UDP packets — each a separate datagram
// the receiver cannot reassemble.
const maxBurstSize = wire.MaxDatagram

// ThrottledWriter wraps an io.Writer with a token-bucket rate limit, used
// to pace outgoing fragment transmission to a configured bytes/sec cap.
type ThrottledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// NewThrottledWriter returns a rate-limited writer capped at
// bytesPerSec. A non-positive limit bypasses throttling entirely,
// returning w unwrapped.
func NewThrottledWriter(ctx context.Context, w io.Writer, bytesPerSec int64) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}

	return &ThrottledWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), maxBurstSize),
		ctx:     ctx,
	}
}

// Write implements io.Writer. It reserves tokens for the whole of p in
// one WaitN call and issues exactly one underlying Write — callers in
// this package never hand Write more than one encoded fragment (at most
// wire.MaxDatagram bytes), and forwarding it as a single call preserves
// that datagram boundary on a UDP-backed writer.
func (tw *ThrottledWriter) Write(p []byte) (int, error) {
	if err := tw.limiter.WaitN(tw.ctx, len(p)); err != nil {
		return 0, err
	}
	return tw.w.Write(p)
}
