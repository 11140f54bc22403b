package marshal

import (
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/callbridge/errors"
)

// cstringChunk is the read granularity when scanning for a terminator.
const cstringChunk = 256

// CString copies a null-terminated byte sequence out of guest memory.
// The pointer is owned by the guest for the duration of the call only;
// the returned string is a copy and holds no reference to guest memory.
// Panics if ptr is outside memory or no terminator exists before the
// end of memory.
func CString(mem api.Memory, ptr uint32) string {
	if mem == nil {
		panic(errors.Protocol(errors.PhaseMarshal, "text read with no guest memory"))
	}

	var out []byte
	off := ptr
	for {
		n := uint32(cstringChunk)
		if remain := mem.Size() - off; remain < n {
			n = remain
		}
		if n == 0 {
			panic(errors.Protocol(errors.PhaseMarshal,
				fmt.Sprintf("unterminated text at 0x%x", ptr)))
		}
		chunk, ok := mem.Read(off, n)
		if !ok {
			panic(errors.Protocol(errors.PhaseMarshal,
				fmt.Sprintf("text pointer 0x%x out of bounds", ptr)))
		}
		for i, b := range chunk {
			if b == 0 {
				return string(append(out, chunk[:i]...))
			}
		}
		out = append(out, chunk...)
		off += n
	}
}

// Bytes copies a pointer+length region out of guest memory.
// Panics if the region is out of bounds.
func Bytes(mem api.Memory, ptr, length uint32) []byte {
	if mem == nil {
		panic(errors.Protocol(errors.PhaseMarshal, "byte read with no guest memory"))
	}
	if length == 0 {
		return nil
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		panic(errors.Protocol(errors.PhaseMarshal,
			fmt.Sprintf("region [0x%x, +%d) out of bounds", ptr, length)))
	}
	return append([]byte(nil), data...)
}

// JoinInt64 recombines two 32-bit halves into a 64-bit integer.
// Bit-exact two's complement: no sign extension of either half.
func JoinInt64(lo, hi uint32) int64 {
	return int64(uint64(hi)<<32 | uint64(lo))
}

// SplitInt64 splits a 64-bit integer into (low, high) 32-bit halves.
func SplitInt64(v int64) (lo, hi uint32) {
	u := uint64(v)
	return uint32(u), uint32(u >> 32)
}

// Float32FromBits reinterprets a boundary i32 as a 32-bit float.
func Float32FromBits(bits uint32) float32 {
	return math.Float32frombits(bits)
}

// Float32Bits reinterprets a 32-bit float as a boundary i32.
func Float32Bits(f float32) uint32 {
	return math.Float32bits(f)
}
