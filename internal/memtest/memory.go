// Package memtest provides an in-process api.Memory implementation for
// tests that exercise marshaling without instantiating a guest.
package memtest

import (
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// Memory is a fixed-size linear memory backed by a byte slice.
type Memory struct {
	api.Memory // embedded only to satisfy api.Memory's unexported marker method
	data       []byte
}

// New creates a memory of the given byte size.
func New(size uint32) *Memory {
	return &Memory{data: make([]byte, size)}
}

// PlaceCString writes s plus a null terminator at ptr and returns ptr.
func (m *Memory) PlaceCString(ptr uint32, s string) uint32 {
	copy(m.data[ptr:], s)
	m.data[ptr+uint32(len(s))] = 0
	return ptr
}

func (m *Memory) Definition() api.MemoryDefinition { return nil }

func (m *Memory) Size() uint32 { return uint32(len(m.data)) }

func (m *Memory) Grow(deltaPages uint32) (uint32, bool) { return 0, false }

func (m *Memory) ReadByte(offset uint32) (byte, bool) {
	if offset >= m.Size() {
		return 0, false
	}
	return m.data[offset], true
}

func (m *Memory) ReadUint16Le(offset uint32) (uint16, bool) {
	if !m.in(offset, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), true
}

func (m *Memory) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.in(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), true
}

func (m *Memory) ReadFloat32Le(offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(offset)
	return math.Float32frombits(v), ok
}

func (m *Memory) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.in(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), true
}

func (m *Memory) ReadFloat64Le(offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(offset)
	return math.Float64frombits(v), ok
}

func (m *Memory) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.in(offset, byteCount) {
		return nil, false
	}
	return m.data[offset : offset+byteCount], true
}

func (m *Memory) WriteByte(offset uint32, v byte) bool {
	if offset >= m.Size() {
		return false
	}
	m.data[offset] = v
	return true
}

func (m *Memory) WriteUint16Le(offset uint32, v uint16) bool {
	if !m.in(offset, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.data[offset:], v)
	return true
}

func (m *Memory) WriteUint32Le(offset uint32, v uint32) bool {
	if !m.in(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.data[offset:], v)
	return true
}

func (m *Memory) WriteFloat32Le(offset uint32, v float32) bool {
	return m.WriteUint32Le(offset, math.Float32bits(v))
}

func (m *Memory) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.in(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.data[offset:], v)
	return true
}

func (m *Memory) WriteFloat64Le(offset uint32, v float64) bool {
	return m.WriteUint64Le(offset, math.Float64bits(v))
}

func (m *Memory) Write(offset uint32, v []byte) bool {
	if !m.in(offset, uint32(len(v))) {
		return false
	}
	copy(m.data[offset:], v)
	return true
}

func (m *Memory) WriteString(offset uint32, v string) bool {
	if !m.in(offset, uint32(len(v))) {
		return false
	}
	copy(m.data[offset:], v)
	return true
}

func (m *Memory) in(offset, count uint32) bool {
	return uint64(offset)+uint64(count) <= uint64(len(m.data))
}
