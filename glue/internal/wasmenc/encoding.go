// Package wasmenc provides the binary encoding primitives the glue
// builder uses to emit trampoline modules.
package wasmenc

import (
	"github.com/tetratelabs/wazero/api"
)

// Section identifiers used by the builder.
const (
	SectionType   byte = 0x01
	SectionImport byte = 0x02
	SectionFunc   byte = 0x03
	SectionMemory byte = 0x05
	SectionGlobal byte = 0x06
	SectionExport byte = 0x07
	SectionCode   byte = 0x0a
	SectionData   byte = 0x0b
)

// ULEB128 encodes an unsigned value in LEB128 format.
func ULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// SLEB128 encodes a signed value in LEB128 format.
func SLEB128[T int32 | int64](v T) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

// ValType converts a wazero value type to its binary encoding.
func ValType(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI32:
		return 0x7f
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

// Name appends a length-prefixed name.
func Name(dst []byte, s string) []byte {
	dst = append(dst, ULEB128(uint32(len(s)))...)
	return append(dst, s...)
}

// Section appends a sized section.
func Section(dst []byte, id byte, payload []byte) []byte {
	dst = append(dst, id)
	dst = append(dst, ULEB128(uint32(len(payload)))...)
	return append(dst, payload...)
}
