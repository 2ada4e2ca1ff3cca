//go:build unix

package fdbuf

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"
)

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func fillInto(t *testing.T, b *Buffer, data []byte) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	go func() {
		w.Write(data)
		w.Close()
	}()
	if err := b.Read(int(r.Fd()), 5*time.Second); err != nil {
		t.Fatalf("Read: %v", err)
	}
	r.Close()
}

func fillBuffer(t *testing.T, data []byte) *Buffer {
	t.Helper()
	var b Buffer
	fillInto(t, &b, data)
	return &b
}

// TestReadUntilEOF tests draining a pipe to EOF across chunk boundaries
func TestReadUntilEOF(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "fdbuf_test",
		Level: hclog.Trace,
	})

	data := pattern(40_000)
	logger.Info("🧪 Testing pipe drain", "bytes", len(data))

	b := fillBuffer(t, data)
	if b.TimedOut() || b.Truncated() {
		t.Errorf("flags = timedOut %v truncated %v, want neither", b.TimedOut(), b.Truncated())
	}
	if b.Size() != len(data) {
		t.Errorf("Size = %d, want %d", b.Size(), len(data))
	}
	if !bytes.Equal(b.Data(), data) {
		t.Error("Data does not match what was written")
	}
}

// TestReadAppendsAndResets tests sequential reads accumulating and Reset
// clearing
func TestReadAppendsAndResets(t *testing.T) {
	var b Buffer
	fillInto(t, &b, []byte("hello "))
	fillInto(t, &b, []byte("world"))
	if got := string(b.Data()); got != "hello world" {
		t.Errorf("Data = %q, want %q", got, "hello world")
	}
	b.Reset()
	if b.Size() != 0 || len(b.Data()) != 0 {
		t.Errorf("Size after Reset = %d, want 0", b.Size())
	}
}

// TestReadTimeout tests the deadline elapsing on a quiet descriptor
func TestReadTimeout(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "fdbuf_test",
		Level: hclog.Trace,
	})
	logger.Info("🧪 Testing read deadline")

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if _, err := w.Write([]byte("stall")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var b Buffer
	if err := b.Read(int(r.Fd()), 150*time.Millisecond); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !b.TimedOut() {
		t.Error("TimedOut = false after deadline elapsed")
	}
	if b.Truncated() {
		t.Error("Truncated = true on a timed-out read")
	}
	if got := string(b.Data()); got != "stall" {
		t.Errorf("Data = %q, want %q", got, "stall")
	}
}

// TestReadTruncation tests the capacity cap stopping a read
func TestReadTruncation(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "fdbuf_test",
		Level: hclog.Trace,
	})
	logger.Info("🧪 Testing capacity cap", "cap", MaxSize)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	go func() {
		chunk := make([]byte, 64*1024)
		for i := 0; i < 65; i++ {
			if _, err := w.Write(chunk); err != nil {
				return
			}
		}
		w.Close()
	}()

	var b Buffer
	if err := b.Read(int(r.Fd()), 10*time.Second); err != nil {
		t.Fatalf("Read: %v", err)
	}
	r.Close()

	if !b.Truncated() {
		t.Error("Truncated = false after overrunning capacity")
	}
	if b.Size() != MaxSize {
		t.Errorf("Size = %d, want %d", b.Size(), MaxSize)
	}
}

// TestReadBadFd tests I/O failures surfacing as errors
func TestReadBadFd(t *testing.T) {
	var b Buffer
	if err := b.Read(-1, time.Second); err == nil {
		t.Error("Read on an invalid descriptor succeeded")
	}
}

// TestIterator tests random access over the chunk list
func TestIterator(t *testing.T) {
	data := pattern(20_000)
	b := fillBuffer(t, data)

	it := b.Iter()
	if it.Size() != len(data) {
		t.Fatalf("Size = %d, want %d", it.Size(), len(data))
	}
	if got := it.Byte(); got != data[0] {
		t.Errorf("Byte at 0 = %d, want %d", got, data[0])
	}

	// Cross the first chunk boundary.
	it.Seek(ChunkSize)
	if got := it.Byte(); got != data[ChunkSize] {
		t.Errorf("Byte at %d = %d, want %d", ChunkSize, got, data[ChunkSize])
	}
	it.Advance(-1)
	if got := it.Byte(); got != data[ChunkSize-1] {
		t.Errorf("Byte at %d = %d, want %d", ChunkSize-1, got, data[ChunkSize-1])
	}

	it.Seek(len(data))
	if it.Valid() {
		t.Error("Valid = true past the end")
	}
	if got := it.Byte(); got != 0 {
		t.Errorf("Byte past the end = %d, want 0", got)
	}
	it.Seek(-3)
	if it.Valid() {
		t.Error("Valid = true before the start")
	}

	// Read spanning the boundary.
	it.Seek(ChunkSize - 4)
	span := make([]byte, 8)
	n, err := it.Read(span)
	if err != nil || n != 8 {
		t.Fatalf("Read = %d, %v, want 8, nil", n, err)
	}
	if !bytes.Equal(span, data[ChunkSize-4:ChunkSize+4]) {
		t.Error("Read across chunk boundary returned wrong bytes")
	}
	if it.Pos() != ChunkSize+4 {
		t.Errorf("Pos after Read = %d, want %d", it.Pos(), ChunkSize+4)
	}

	it.Seek(len(data))
	if _, err := it.Read(span); err != io.EOF {
		t.Errorf("Read at end = %v, want io.EOF", err)
	}
}

// TestReadProcessedDataInStream tests the three-descriptor pump against
// a transforming process stand-in
func TestReadProcessedDataInStream(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "fdbuf_test",
		Level: hclog.Trace,
	})

	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	toR, toW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	fromR, fromW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer inR.Close()
	defer toR.Close()
	defer fromR.Close()

	source := pattern(10_000)
	want := make([]byte, len(source))
	for i, v := range source {
		want[i] = v + 1
	}

	logger.Info("🧪 Testing stream pump", "bytes", len(source))

	// Stand-in for the external process: increment every byte.
	go func() {
		defer fromW.Close()
		buf := make([]byte, 4096)
		for {
			n, err := toR.Read(buf)
			if n > 0 {
				out := make([]byte, n)
				for i := 0; i < n; i++ {
					out[i] = buf[i] + 1
				}
				if _, err := fromW.Write(out); err != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		inW.Write(source)
		inW.Close()
	}()

	// The pump owns the write end it will close, so hand it a dup.
	toFd, err := unix.Dup(int(toW.Fd()))
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	toW.Close()

	var b Buffer
	if err := b.ReadProcessedDataInStream(int(inR.Fd()), toFd, int(fromR.Fd()), 5*time.Second); err != nil {
		t.Fatalf("ReadProcessedDataInStream: %v", err)
	}
	if b.TimedOut() || b.Truncated() {
		t.Errorf("flags = timedOut %v truncated %v, want neither", b.TimedOut(), b.Truncated())
	}
	if !bytes.Equal(b.Data(), want) {
		t.Errorf("Data = %d bytes, want %d transformed bytes", b.Size(), len(want))
	}
}

// TestReadProcessedDataTimeout tests the pump hitting its deadline on
// quiet descriptors
func TestReadProcessedDataTimeout(t *testing.T) {
	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	toR, toW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	fromR, fromW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer inR.Close()
	defer inW.Close()
	defer toR.Close()
	defer toW.Close()
	defer fromR.Close()
	defer fromW.Close()

	var b Buffer
	if err := b.ReadProcessedDataInStream(int(inR.Fd()), int(toW.Fd()), int(fromR.Fd()), 150*time.Millisecond); err != nil {
		t.Fatalf("ReadProcessedDataInStream: %v", err)
	}
	if !b.TimedOut() {
		t.Error("TimedOut = false after deadline elapsed")
	}
}
