//go:build unix

// Package fdbuf pulls descriptor streams into bounded chunked memory
// under a poll deadline. Timeouts and capacity exhaustion are reported
// as flags on the buffer, not as errors.
package fdbuf

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// ChunkSize is the allocation unit of the buffer.
	ChunkSize = 16 * 1024
	// MaxChunks caps the chunk list.
	MaxChunks = 256
	// MaxSize is the most bytes a buffer will hold before truncating.
	MaxSize = ChunkSize * MaxChunks
)

// Buffer accumulates bytes read from descriptors. The zero value is
// ready to use. Not safe for concurrent use.
type Buffer struct {
	chunks    [][]byte
	size      int
	timedOut  bool
	truncated bool
}

// Size returns the number of bytes accumulated.
func (b *Buffer) Size() int { return b.size }

// TimedOut reports whether the last read stopped on its deadline.
func (b *Buffer) TimedOut() bool { return b.timedOut }

// Truncated reports whether the last read stopped at capacity.
func (b *Buffer) Truncated() bool { return b.truncated }

// Data returns the accumulated bytes as one contiguous copy.
func (b *Buffer) Data() []byte {
	out := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// Reset drops the accumulated bytes and clears the flags.
func (b *Buffer) Reset() {
	b.chunks = nil
	b.size = 0
	b.timedOut = false
	b.truncated = false
}

// grow returns the writable tail of the current chunk, allocating the
// next chunk when the current one is full. nil means the buffer is at
// capacity.
func (b *Buffer) grow() []byte {
	if n := len(b.chunks); n == 0 || len(b.chunks[n-1]) == cap(b.chunks[n-1]) {
		if n == MaxChunks {
			return nil
		}
		b.chunks = append(b.chunks, make([]byte, 0, ChunkSize))
	}
	c := b.chunks[len(b.chunks)-1]
	return c[len(c):cap(c)]
}

func (b *Buffer) commit(n int) {
	i := len(b.chunks) - 1
	b.chunks[i] = b.chunks[i][:len(b.chunks[i])+n]
	b.size += n
}

func pollMillis(d time.Duration) int {
	ms := int((d + time.Millisecond - 1) / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	return ms
}

// Read drains fd into the buffer until EOF, appending to whatever is
// already held. timeout bounds the whole call. Hitting the deadline or
// the capacity cap sets the matching flag and returns nil; only real
// I/O failures return an error.
func (b *Buffer) Read(fd int, timeout time.Duration) error {
	b.timedOut = false
	b.truncated = false
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("set fd %d nonblocking: %w", fd, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			b.timedOut = true
			return nil
		}
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, pollMillis(remaining))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll fd %d: %w", fd, err)
		}
		if n == 0 {
			b.timedOut = true
			return nil
		}

		dst := b.grow()
		if dst == nil {
			b.truncated = true
			return nil
		}
		rn, err := unix.Read(fd, dst)
		switch {
		case err == unix.EAGAIN || err == unix.EINTR:
		case err != nil:
			return fmt.Errorf("read fd %d: %w", fd, err)
		case rn == 0:
			return nil
		default:
			b.commit(rn)
		}
	}
}

// ReadProcessedDataInStream pumps in through a 16 KiB ring into to
// while draining from into the buffer, all three descriptors
// nonblocking under a single poll. to is closed once in has hit EOF
// and the ring is empty, which lets the process on the far side finish
// and close its output in turn. The call returns when from reaches
// EOF, the deadline elapses, or the buffer truncates.
func (b *Buffer) ReadProcessedDataInStream(in, to, from int, timeout time.Duration) error {
	b.timedOut = false
	b.truncated = false
	for _, fd := range []int{in, to, from} {
		if err := unix.SetNonblock(fd, true); err != nil {
			return fmt.Errorf("set fd %d nonblocking: %w", fd, err)
		}
	}

	var (
		ring      [ChunkSize]byte
		ringStart int
		ringLen   int
		inEOF     bool
		toClosed  bool
	)
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			b.timedOut = true
			return nil
		}

		var fds []unix.PollFd
		inIdx, toIdx := -1, -1
		if !inEOF && ringLen < ChunkSize {
			inIdx = len(fds)
			fds = append(fds, unix.PollFd{Fd: int32(in), Events: unix.POLLIN})
		}
		if !toClosed && ringLen > 0 {
			toIdx = len(fds)
			fds = append(fds, unix.PollFd{Fd: int32(to), Events: unix.POLLOUT})
		}
		fromIdx := len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(from), Events: unix.POLLIN})

		n, err := unix.Poll(fds, pollMillis(remaining))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			b.timedOut = true
			return nil
		}

		if inIdx >= 0 && fds[inIdx].Revents != 0 {
			w := (ringStart + ringLen) % ChunkSize
			span := ChunkSize - ringLen
			if c := ChunkSize - w; c < span {
				span = c
			}
			rn, err := unix.Read(in, ring[w:w+span])
			switch {
			case err == unix.EAGAIN || err == unix.EINTR:
			case err != nil:
				return fmt.Errorf("read input fd %d: %w", in, err)
			case rn == 0:
				inEOF = true
			default:
				ringLen += rn
			}
		}

		if toIdx >= 0 && fds[toIdx].Revents != 0 {
			span := ringLen
			if c := ChunkSize - ringStart; c < span {
				span = c
			}
			wn, err := unix.Write(to, ring[ringStart:ringStart+span])
			switch {
			case err == unix.EAGAIN || err == unix.EINTR:
			case err != nil:
				return fmt.Errorf("write output fd %d: %w", to, err)
			default:
				ringStart = (ringStart + wn) % ChunkSize
				ringLen -= wn
			}
		}

		if fds[fromIdx].Revents != 0 {
			dst := b.grow()
			if dst == nil {
				b.truncated = true
				return nil
			}
			rn, err := unix.Read(from, dst)
			switch {
			case err == unix.EAGAIN || err == unix.EINTR:
			case err != nil:
				return fmt.Errorf("read processed fd %d: %w", from, err)
			case rn == 0:
				return nil
			default:
				b.commit(rn)
			}
		}

		if inEOF && ringLen == 0 && !toClosed {
			if err := unix.Close(to); err != nil {
				return fmt.Errorf("close output fd %d: %w", to, err)
			}
			toClosed = true
		}
	}
}

// Iter returns a cursor over the logical concatenation of chunks. The
// cursor indexes chunk storage in place; no bytes are copied until a
// Read.
func (b *Buffer) Iter() *Iterator { return &Iterator{b: b} }

// Iterator is a random-access position in a buffer. Positions may be
// moved out of range freely; Valid reports whether the current one is
// usable.
type Iterator struct {
	b   *Buffer
	pos int
}

// Size returns the total number of addressable bytes.
func (it *Iterator) Size() int { return it.b.size }

// Pos returns the current position.
func (it *Iterator) Pos() int { return it.pos }

// Valid reports whether the current position is inside the buffer.
func (it *Iterator) Valid() bool { return it.pos >= 0 && it.pos < it.b.size }

// Advance moves the position by n, which may be negative.
func (it *Iterator) Advance(n int) { it.pos += n }

// Seek sets the position.
func (it *Iterator) Seek(pos int) { it.pos = pos }

// Byte returns the byte at the current position, zero when out of
// range.
func (it *Iterator) Byte() byte {
	if !it.Valid() {
		return 0
	}
	// Every chunk before the last is full, so positions map directly.
	return it.b.chunks[it.pos/ChunkSize][it.pos%ChunkSize]
}

// Read copies bytes from the current position forward, advancing it.
// At the end of the buffer it returns io.EOF.
func (it *Iterator) Read(p []byte) (int, error) {
	if it.pos < 0 {
		return 0, fmt.Errorf("position %d out of range", it.pos)
	}
	if it.pos >= it.b.size {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && it.pos < it.b.size {
		c := it.b.chunks[it.pos/ChunkSize]
		m := copy(p[n:], c[it.pos%ChunkSize:])
		n += m
		it.pos += m
	}
	return n, nil
}
