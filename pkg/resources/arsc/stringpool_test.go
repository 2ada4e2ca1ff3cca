package arsc

import (
	"encoding/binary"
	"errors"
	"testing"
	"unicode/utf16"

	"github.com/hashicorp/go-hclog"

	"github.com/droidres/reskit/pkg/resources"
)

// rawPool assembles a string pool chunk from pre-encoded payloads.
func rawPool(flags uint32, payloads [][]byte) []byte {
	const headerSize = 28
	var data []byte
	offsets := make([]uint32, len(payloads))
	for i, p := range payloads {
		offsets[i] = uint32(len(data))
		data = append(data, p...)
	}
	stringsStart := headerSize + 4*len(payloads)
	buf := make([]byte, stringsStart+len(data))
	binary.LittleEndian.PutUint16(buf[0:2], ChunkStringPool)
	binary.LittleEndian.PutUint16(buf[2:4], headerSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(buf)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(payloads)))
	binary.LittleEndian.PutUint32(buf[16:20], flags)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(stringsStart))
	for i, off := range offsets {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], off)
	}
	copy(buf[stringsStart:], data)
	return buf
}

func utf16Payload(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := binary.LittleEndian.AppendUint16(nil, uint16(len(units)))
	for _, u := range units {
		buf = binary.LittleEndian.AppendUint16(buf, u)
	}
	return binary.LittleEndian.AppendUint16(buf, 0)
}

func utf8Payload(s string) []byte {
	appendLen := func(buf []byte, n int) []byte {
		if n < 0x80 {
			return append(buf, byte(n))
		}
		return append(buf, byte(0x80|n>>8), byte(n))
	}
	buf := appendLen(nil, len(utf16.Encode([]rune(s))))
	buf = appendLen(buf, len(s))
	buf = append(buf, s...)
	return append(buf, 0)
}

// TestStringPoolDecodeUTF16 tests decoding a UTF-16 pool
func TestStringPoolDecodeUTF16(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "stringpool_test",
		Level: hclog.Trace,
	})

	want := []string{"res/layout/main.xml", "héllo", "日本語テスト", ""}
	payloads := make([][]byte, len(want))
	for i, s := range want {
		payloads[i] = utf16Payload(s)
	}

	pool, err := parseStringPool(rawPool(0, payloads))
	if err != nil {
		t.Fatalf("parseStringPool: %v", err)
	}
	logger.Info("📦 Parsed UTF-16 pool", "strings", pool.Len())

	if pool.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", pool.Len(), len(want))
	}
	for i, s := range want {
		got, err := pool.StringAt(uint32(i))
		if err != nil {
			t.Fatalf("StringAt(%d): %v", i, err)
		}
		if got != s {
			t.Errorf("StringAt(%d) = %q, want %q", i, got, s)
		}
	}
}

// TestStringPoolDecodeUTF8 tests decoding a UTF-8 pool, including the
// two-byte length form
func TestStringPoolDecodeUTF8(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "stringpool_test",
		Level: hclog.Trace,
	})

	long := ""
	for i := 0; i < 40; i++ {
		long += "resource/"
	}
	want := []string{"app_name", "ñandú", long}
	payloads := make([][]byte, len(want))
	for i, s := range want {
		payloads[i] = utf8Payload(s)
	}

	pool, err := parseStringPool(rawPool(UTF8Flag, payloads))
	if err != nil {
		t.Fatalf("parseStringPool: %v", err)
	}
	logger.Info("📦 Parsed UTF-8 pool", "strings", pool.Len(), "long_len", len(long))

	for i, s := range want {
		got, err := pool.StringAt(uint32(i))
		if err != nil {
			t.Fatalf("StringAt(%d): %v", i, err)
		}
		if got != s {
			t.Errorf("StringAt(%d) = %q, want %q", i, got, s)
		}
	}
	if idx := pool.IndexOf("ñandú"); idx != 1 {
		t.Errorf("IndexOf(ñandú) = %d, want 1", idx)
	}
	if idx := pool.IndexOf("missing"); idx != -1 {
		t.Errorf("IndexOf(missing) = %d, want -1", idx)
	}
}

// TestStringPoolSortedFlag tests that the sorted bit is carried through
func TestStringPoolSortedFlag(t *testing.T) {
	pool, err := parseStringPool(rawPool(SortedFlag, [][]byte{utf16Payload("a")}))
	if err != nil {
		t.Fatalf("parseStringPool: %v", err)
	}
	if !pool.sorted {
		t.Error("sorted = false, want true")
	}
}

// TestStringPoolMalformed tests truncated and corrupt pools
func TestStringPoolMalformed(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "stringpool_test",
		Level: hclog.Trace,
	})

	good := rawPool(0, [][]byte{utf16Payload("ok")})

	countBeyondChunk := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(countBeyondChunk[8:12], 1000)

	offsetBeyondChunk := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(offsetBeyondChunk[28:32], 0xffff)

	utf8LenPastEnd := rawPool(UTF8Flag, [][]byte{{2, 200, 'a', 'b'}})
	utf16LenPastEnd := rawPool(0, [][]byte{{50, 0, 'a', 0}})

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "count_beyond_chunk", data: countBeyondChunk},
		{name: "offset_beyond_chunk", data: offsetBeyondChunk},
		{name: "utf8_length_past_end", data: utf8LenPastEnd},
		{name: "utf16_length_past_end", data: utf16LenPastEnd},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger.Info("🧪 Testing malformed pool", "test", tc.name)
			_, err := parseStringPool(tc.data)
			if !errors.Is(err, resources.ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

// TestStringPoolNilSafety tests the nil-pool accessors
func TestStringPoolNilSafety(t *testing.T) {
	var pool *StringPool
	if pool.Len() != 0 {
		t.Errorf("Len = %d, want 0", pool.Len())
	}
	if _, err := pool.StringAt(0); !errors.Is(err, resources.ErrMalformed) {
		t.Errorf("StringAt err = %v, want ErrMalformed", err)
	}
	if idx := pool.IndexOf("x"); idx != -1 {
		t.Errorf("IndexOf = %d, want -1", idx)
	}
}
