package encryption

import (
	"io"
)

// TransformWriter wraps an io.Writer into a transforming io.WriteCloser.
//
// Writes are buffered to whole blocks and pushed through TransformBlock;
// Close runs TransformFinalBlock, writes the tail and closes the transform.
// The underlying writer is not closed.
//
// A failed TransformBlock leaves the buffered input as it was. Once the
// underlying writer fails, the input has already gone through the transform,
// so that error is returned by every later Write and by Close.
type TransformWriter struct {
	t       *Transform
	w       io.Writer
	pending []byte
	out     []byte
	err     error
	closed  bool
}

// NewTransformWriter returns a TransformWriter feeding t into w
func NewTransformWriter(w io.Writer, t *Transform) *TransformWriter {
	return &TransformWriter{t: t, w: w}
}

func (tw *TransformWriter) Write(p []byte) (int, error) {
	if tw.closed {
		return 0, ErrTransformFinalized
	}
	if tw.err != nil {
		return 0, tw.err
	}

	blockSize := tw.t.InputBlockSize()
	total := len(tw.pending) + len(p)
	n := total - total%blockSize
	if n == 0 {
		tw.pending = append(tw.pending, p...)
		return len(p), nil
	}

	// Full-slice expression forces a copy, pending stays intact until the transform accepts it
	in := append(tw.pending[:len(tw.pending):len(tw.pending)], p...)
	defer wipe(in)

	if cap(tw.out) < n {
		tw.out = make([]byte, n)
	}
	written, err := tw.t.TransformBlock(tw.out[:n], in[:n])
	if err != nil {
		return 0, err
	}
	wipe(tw.pending)
	tw.pending = append(tw.pending[:0], in[n:]...)

	if _, err := tw.w.Write(tw.out[:written]); err != nil {
		tw.err = err
		return len(p), err
	}
	return len(p), nil
}

// Close finalizes the transform and flushes the remaining output
func (tw *TransformWriter) Close() error {
	if tw.closed {
		return nil
	}
	tw.closed = true
	defer tw.t.Close()
	defer wipe(tw.out)
	defer wipe(tw.pending)

	if tw.err != nil {
		return tw.err
	}

	final, err := tw.t.TransformFinalBlock(tw.pending)
	if err != nil {
		return err
	}

	_, err = tw.w.Write(final)
	return err
}
