// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package stream reassembles chunked upstream response bodies into the units
// the transform layer works on: complete lines for event streams and the
// whole body for plain JSON responses.
package stream

import (
	"bytes"
	"errors"
	"io"
)

var (
	// ErrClosed is returned by writes to a LineWriter after Close.
	ErrClosed = errors.New("stream: write to closed line writer")
	// ErrBodyTooLarge is returned by ReadAll when the body exceeds its limit.
	ErrBodyTooLarge = errors.New("stream: body exceeds size limit")
)

// flusher matches http.Flusher without tying this package to net/http.
type flusher interface {
	Flush()
}

// LineFunc rewrites one line, given without its newline terminator. It may
// return its argument.
type LineFunc func(line []byte) []byte

// LineWriter splits an arbitrarily chunked byte stream into newline
// terminated lines and writes each rewritten line to dst. An incomplete
// trailing line is held back until the next write or Close.
//
// A LineWriter owns its buffer and is not safe for concurrent use.
type LineWriter struct {
	dst     io.Writer
	fn      LineFunc
	pending []byte
	out     []byte
	err     error
	closed  bool
}

// NewLineWriter returns a LineWriter emitting to dst. If dst implements
// Flush, it is flushed after every batch of lines.
func NewLineWriter(dst io.Writer, fn LineFunc) *LineWriter {
	return &LineWriter{dst: dst, fn: fn}
}

// Write appends chunk to the pending buffer and emits every completed line
// with a single write to dst, in input order.
func (w *LineWriter) Write(chunk []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		return 0, ErrClosed
	}

	// Bytes already pending hold no newline; only the new chunk is scanned.
	scanFrom := len(w.pending)
	w.pending = append(w.pending, chunk...)

	w.out = w.out[:0]
	start := 0
	for {
		i := bytes.IndexByte(w.pending[scanFrom:], '\n')
		if i < 0 {
			break
		}
		end := scanFrom + i
		w.out = append(w.out, w.fn(w.pending[start:end])...)
		w.out = append(w.out, '\n')
		start = end + 1
		scanFrom = start
	}

	if start > 0 {
		n := copy(w.pending, w.pending[start:])
		w.pending = w.pending[:n]
	}

	if len(w.out) > 0 {
		if err := w.emit(w.out); err != nil {
			return 0, err
		}
	}
	return len(chunk), nil
}

// Close emits the trailing partial line, if any, without adding a newline.
// Calling Close more than once is a no-op.
func (w *LineWriter) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}

	if len(w.pending) > 0 {
		last := w.fn(w.pending)
		w.pending = nil
		if err := w.emit(last); err != nil {
			return err
		}
	}
	w.out = nil
	return nil
}

// Pending reports the number of buffered bytes of the incomplete last line.
func (w *LineWriter) Pending() int {
	return len(w.pending)
}

func (w *LineWriter) emit(p []byte) error {
	if _, err := w.dst.Write(p); err != nil {
		w.err = err
		return err
	}
	if f, ok := w.dst.(flusher); ok {
		f.Flush()
	}
	return nil
}

// FlushWriter flushes the wrapped writer after every write so streamed
// passthrough bodies reach the client as they arrive.
type FlushWriter struct {
	W io.Writer
}

// Write implements io.Writer.
func (fw FlushWriter) Write(p []byte) (int, error) {
	n, err := fw.W.Write(p)
	if f, ok := fw.W.(flusher); ok && err == nil {
		f.Flush()
	}
	return n, err
}

// ReadAll reads r to EOF. A positive limit caps the body size; exceeding it
// fails with ErrBodyTooLarge rather than growing the buffer further. A limit
// of zero or less reads without bound.
func ReadAll(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// Pump copies src to dst chunk by chunk. Read and write failures are reported
// separately so callers can tell an upstream fault from a departed client.
func Pump(dst io.Writer, src io.Reader) (readErr, writeErr error) {
	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return nil, werr
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil, nil
		}
		if rerr != nil {
			return rerr, nil
		}
	}
}
