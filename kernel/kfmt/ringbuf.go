// Package kfmt provides the early boot log: a fixed-size ring buffer that
// retains the most recent output and the slog logger writing into it.
package kfmt

import "io"

// LogBufferSize defines the capacity of a LogBuffer. The size must always be
// a power of 2. One slot separates the write index from the read index so a
// full buffer holds LogBufferSize-1 elements.
const LogBufferSize = 1 << 16

// LogBuffer is a ring buffer of LogBufferSize elements. When the buffer is
// full, appending an element overwrites the oldest one. LogBuffer[byte]
// implements io.Reader and io.Writer.
type LogBuffer[T any] struct {
	buffer         [LogBufferSize]T
	rIndex, wIndex int
}

// AppendByte appends a single element to the buffer.
func (rb *LogBuffer[T]) AppendByte(b T) {
	rb.buffer[rb.wIndex] = b
	rb.wIndex = (rb.wIndex + 1) & (LogBufferSize - 1)
	if rb.rIndex == rb.wIndex {
		rb.rIndex = (rb.rIndex + 1) & (LogBufferSize - 1)
	}
}

// AppendBuf appends every element of p to the buffer.
func (rb *LogBuffer[T]) AppendBuf(p []T) {
	for _, b := range p {
		rb.AppendByte(b)
	}
}

// Write writes len(p) elements from p to the LogBuffer.
func (rb *LogBuffer[T]) Write(p []T) (int, error) {
	rb.AppendBuf(p)
	return len(p), nil
}

// Flush is a no-op; the buffer has no backing device to drain to yet.
func (rb *LogBuffer[T]) Flush() {}

// Len returns the number of unread elements.
func (rb *LogBuffer[T]) Len() int {
	return (rb.wIndex - rb.rIndex) & (LogBufferSize - 1)
}

// Reset discards all unread elements.
func (rb *LogBuffer[T]) Reset() {
	rb.rIndex, rb.wIndex = 0, 0
}

// Read reads up to len(p) elements into p. It returns the number of elements
// read (0 <= n <= len(p)) and io.EOF once the buffer is drained.
func (rb *LogBuffer[T]) Read(p []T) (n int, err error) {
	switch {
	case rb.rIndex < rb.wIndex:
		// read up to min(wIndex - rIndex, len(p)) elements
		n = rb.wIndex - rb.rIndex
		if pLen := len(p); pLen < n {
			n = pLen
		}

		copy(p, rb.buffer[rb.rIndex:rb.rIndex+n])
		rb.rIndex += n

		return n, nil
	case rb.rIndex > rb.wIndex:
		// Read up to min(len(buf) - rIndex, len(p)) elements
		n = len(rb.buffer) - rb.rIndex
		if pLen := len(p); pLen < n {
			n = pLen
		}

		copy(p, rb.buffer[rb.rIndex:rb.rIndex+n])
		rb.rIndex += n

		if rb.rIndex == len(rb.buffer) {
			rb.rIndex = 0
		}

		return n, nil
	default: // rIndex == wIndex
		return 0, io.EOF
	}
}
