package resource

import (
	"context"
	"io"
)

// RateLimitedReader throttles an io.Reader against the controller's IO
// budget. Each Read waits for the full buffer length, so callers should
// read in modest chunks.
type RateLimitedReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

// NewRateLimitedReader wraps r. A nil controller passes reads through.
func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *RateLimitedReader {
	return &RateLimitedReader{ctx: ctx, r: r, rc: rc}
}

func (r *RateLimitedReader) Read(p []byte) (int, error) {
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// RateLimitedWriter throttles an io.Writer against the controller's IO
// budget.
type RateLimitedWriter struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

// NewRateLimitedWriter wraps w. A nil controller passes writes through.
func NewRateLimitedWriter(ctx context.Context, w io.Writer, rc *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{ctx: ctx, w: w, rc: rc}
}

func (w *RateLimitedWriter) Write(p []byte) (int, error) {
	if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}
