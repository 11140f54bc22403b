package marshal

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/wasmbridge/callbridge/internal/memtest"
)

func TestJoinSplitInt64_RoundTrip(t *testing.T) {
	values := []int64{
		0, 1, -1, 42, -42,
		math.MaxInt32, math.MinInt32,
		math.MaxInt32 + 1, math.MinInt32 - 1,
		math.MaxInt64, math.MinInt64,
		1 << 32, -(1 << 32), 0x00000001_00000000, -0x7fffffff_ffffffff,
	}

	for _, v := range values {
		lo, hi := SplitInt64(v)
		if got := JoinInt64(lo, hi); got != v {
			t.Errorf("round trip %d: got %d (lo=%#x hi=%#x)", v, got, lo, hi)
		}
	}
}

func TestJoinInt64_NoSignExtension(t *testing.T) {
	// A low half with the top bit set must not smear into the high half.
	if got := JoinInt64(0xffffffff, 0); got != 0xffffffff {
		t.Errorf("JoinInt64(0xffffffff, 0) = %d, want %d", got, int64(0xffffffff))
	}
	if got := JoinInt64(0, 0xffffffff); got != -(1 << 32) {
		t.Errorf("JoinInt64(0, 0xffffffff) = %d, want %d", got, int64(-(1 << 32)))
	}
}

func TestCString(t *testing.T) {
	mem := memtest.New(4096)
	ptr := mem.PlaceCString(64, "hello")

	if got := CString(mem, ptr); got != "hello" {
		t.Errorf("CString = %q, want %q", got, "hello")
	}

	// Empty string: terminator at the pointer itself.
	empty := mem.PlaceCString(128, "")
	if got := CString(mem, empty); got != "" {
		t.Errorf("CString = %q, want empty", got)
	}
}

func TestCString_LongerThanChunk(t *testing.T) {
	mem := memtest.New(4096)
	long := strings.Repeat("x", cstringChunk*2+17)
	ptr := mem.PlaceCString(16, long)

	if got := CString(mem, ptr); got != long {
		t.Errorf("CString length = %d, want %d", len(got), len(long))
	}
}

func TestCString_Unterminated(t *testing.T) {
	mem := memtest.New(64)
	for i := uint32(0); i < 64; i++ {
		mem.WriteByte(i, 'a')
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unterminated text")
		}
	}()
	CString(mem, 0)
}

func TestCString_OutOfBounds(t *testing.T) {
	mem := memtest.New(64)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for dangling pointer")
		}
	}()
	CString(mem, 1024)
}

func TestCString_NilMemory(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil memory")
		}
	}()
	CString(nil, 0)
}

func TestBytes(t *testing.T) {
	mem := memtest.New(256)
	mem.Write(8, []byte{1, 2, 3, 4})

	got := Bytes(mem, 8, 4)
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Bytes = %v", got)
	}

	// The copy must not alias guest memory.
	mem.WriteByte(8, 99)
	if got[0] != 1 {
		t.Error("Bytes must copy out of guest memory")
	}

	if got := Bytes(mem, 0, 0); got != nil {
		t.Errorf("zero-length Bytes = %v, want nil", got)
	}
}

func TestBytes_OutOfBounds(t *testing.T) {
	mem := memtest.New(16)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-bounds region")
		}
	}()
	Bytes(mem, 8, 64)
}

func TestFloat32Bits_RoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 0.5, float32(math.Pi), math.MaxFloat32}
	for _, v := range values {
		if got := Float32FromBits(Float32Bits(v)); got != v {
			t.Errorf("round trip %v: got %v", v, got)
		}
	}
}
