package resource

import (
	"context"
	"io"
)

// ThrottledWriter applies the controller's IO limit to every write.
type ThrottledWriter struct {
	ctx context.Context
	c   *Controller
	w   io.Writer
}

// NewThrottledWriter wraps w so writes wait on the controller's IO limiter.
func NewThrottledWriter(ctx context.Context, c *Controller, w io.Writer) *ThrottledWriter {
	return &ThrottledWriter{ctx: ctx, c: c, w: w}
}

func (t *ThrottledWriter) Write(p []byte) (int, error) {
	if err := t.c.AcquireIO(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}

// ThrottledReader applies the controller's IO limit to every read.
//
// The limiter is charged for len(p) up front, which overcounts short reads.
// Snapshot loads read in full buffers, so the error stays small.
type ThrottledReader struct {
	ctx context.Context
	c   *Controller
	r   io.Reader
}

// NewThrottledReader wraps r so reads wait on the controller's IO limiter.
func NewThrottledReader(ctx context.Context, c *Controller, r io.Reader) *ThrottledReader {
	return &ThrottledReader{ctx: ctx, c: c, r: r}
}

func (t *ThrottledReader) Read(p []byte) (int, error) {
	if err := t.c.AcquireIO(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.r.Read(p)
}
