package glue

import (
	"fmt"

	"github.com/wasmbridge/callbridge/errors"
	"github.com/wasmbridge/callbridge/glue/internal/wasmenc"
	"github.com/wasmbridge/callbridge/signature"
)

// DefaultHostModule is the import module name trampolines call into.
const DefaultHostModule = "callbridge"

// ParamType is a feature-level trampoline parameter.
type ParamType uint8

const (
	// Int32 passes through as one boundary int32.
	Int32 ParamType = iota
	// Int64 is split into low and high 32-bit halves.
	Int64
	// Text is a pointer to null-terminated bytes in guest memory,
	// passed as a boundary handle.
	Text
	// Float32 passes through as one boundary float32.
	Float32
)

func (p ParamType) String() string {
	switch p {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Text:
		return "text"
	case Float32:
		return "float32"
	}
	return fmt.Sprintf("param(%d)", uint8(p))
}

// kinds returns the boundary kinds the parameter packs into.
func (p ParamType) kinds() []signature.Kind {
	switch p {
	case Int32:
		return []signature.Kind{signature.Int32}
	case Int64:
		return []signature.Kind{signature.Int64Lo, signature.Int64Hi}
	case Text:
		return []signature.Kind{signature.Handle}
	case Float32:
		return []signature.Kind{signature.Float32}
	}
	return nil
}

// valType returns the wasm value type of the trampoline's own parameter.
func (p ParamType) valType() byte {
	switch p {
	case Int64:
		return 0x7e // i64
	case Float32:
		return 0x7d // f32
	default:
		return 0x7f // i32
	}
}

// Slot is one feature callback site: a static, compile-time binding
// between a trampoline export and a cataloged signature.
type Slot struct {
	// Name is the trampoline's export name.
	Name string
	// Params are the feature-level parameters, identity excluded.
	Params []ParamType
	// Signature is the bound boundary shape.
	Signature signature.Signature
}

type segment struct {
	data   []byte
	offset uint32
}

// Builder collects slots and emits the trampoline module.
type Builder struct {
	hostModule string
	slots      []Slot
	segments   []segment
	memPages   uint32
	asyncify   bool
}

// NewBuilder creates a builder targeting the default host module.
func NewBuilder() *Builder {
	return &Builder{hostModule: DefaultHostModule}
}

// SetHostModule overrides the import module name.
func (b *Builder) SetHostModule(name string) {
	b.hostModule = name
}

// AddSlot registers a trampoline to synthesize.
func (b *Builder) AddSlot(s Slot) {
	b.slots = append(b.slots, s)
}

// WithMemory declares a local memory of the given page count, exported
// as "memory". Features that share their own memory skip this; tests
// use it to stage text payloads.
func (b *Builder) WithMemory(pages uint32) {
	b.memPages = pages
}

// AddData stages bytes at a fixed offset in the local memory.
func (b *Builder) AddData(offset uint32, data []byte) {
	b.segments = append(b.segments, segment{offset: offset, data: append([]byte(nil), data...)})
}

// WithAsyncifyExports adds the asyncify control exports so the module
// can take part in suspendable calls. A trampoline body performs
// exactly one boundary call, so rewind replay re-executes it without
// any saved stack; the exports only track the protocol state. Requires
// a memory for the host driver's scratch area.
func (b *Builder) WithAsyncifyExports() {
	b.asyncify = true
}

// validate checks every slot's packed shape against its signature.
func (b *Builder) validate() error {
	names := make(map[string]bool, len(b.slots))
	for _, s := range b.slots {
		if s.Name == "" {
			return errors.InvalidInput(errors.PhaseGlue, "slot name cannot be empty")
		}
		if names[s.Name] {
			return errors.InvalidInput(errors.PhaseGlue, fmt.Sprintf("duplicate slot name %q", s.Name))
		}
		names[s.Name] = true

		packed := []signature.Kind{signature.Handle}
		for _, p := range s.Params {
			packed = append(packed, p.kinds()...)
		}

		want := s.Signature.Params()
		if !kindsEqual(packed, want) {
			return errors.SignatureMismatch(s.Name, s.Signature.Code(),
				kindCodes(want), kindCodes(packed))
		}
	}
	if len(b.segments) > 0 && b.memPages == 0 {
		return errors.InvalidInput(errors.PhaseGlue, "data segments require a memory")
	}
	if b.asyncify && b.memPages == 0 {
		return errors.InvalidInput(errors.PhaseGlue, "asyncify exports require a memory")
	}
	return nil
}

// Build emits the trampoline module binary.
func (b *Builder) Build() ([]byte, error) {
	if len(b.slots) == 0 {
		return nil, errors.InvalidInput(errors.PhaseGlue, "no slots")
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	// Distinct imported signatures in first-use order.
	var imports []signature.Signature
	importIdx := make(map[string]int)
	for _, s := range b.slots {
		if _, ok := importIdx[s.Signature.Code()]; !ok {
			importIdx[s.Signature.Code()] = len(imports)
			imports = append(imports, s.Signature)
		}
	}

	// Type index space: one type per import, then one per trampoline.
	var types []byte
	nTypes := 0
	for _, sig := range imports {
		types = append(types, encodeFuncType(sigParamValTypes(sig), sigResultValTypes(sig))...)
		nTypes++
	}
	trampTypeIdx := make([]int, len(b.slots))
	for i, s := range b.slots {
		types = append(types, encodeFuncType(b.trampParamValTypes(s), sigResultValTypes(s.Signature))...)
		trampTypeIdx[i] = nTypes
		nTypes++
	}

	// Asyncify control types: () -> i32, (i32) -> (), () -> ().
	var ctrlTypeIdx [3]int
	if b.asyncify {
		types = append(types, encodeFuncType(nil, []byte{0x7f})...)
		types = append(types, encodeFuncType([]byte{0x7f}, nil)...)
		types = append(types, encodeFuncType(nil, nil)...)
		ctrlTypeIdx = [3]int{nTypes, nTypes + 1, nTypes + 2}
		nTypes += 3
	}
	typeSection := append(wasmenc.ULEB128(uint32(nTypes)), types...)

	// Import section: the multiplexers.
	importSection := wasmenc.ULEB128(uint32(len(imports)))
	for i, sig := range imports {
		importSection = wasmenc.Name(importSection, b.hostModule)
		importSection = wasmenc.Name(importSection, sig.Code())
		importSection = append(importSection, 0x00)
		importSection = append(importSection, wasmenc.ULEB128(uint32(i))...)
	}

	// Asyncify control functions, in index order after the trampolines.
	type ctrlFunc struct {
		name    string
		body    []byte
		typeIdx int
	}
	var ctrls []ctrlFunc
	if b.asyncify {
		ctrls = []ctrlFunc{
			{name: "asyncify_get_state", typeIdx: ctrlTypeIdx[0],
				body: []byte{0x00, 0x23, 0x00, 0x0b}},
			{name: "asyncify_start_unwind", typeIdx: ctrlTypeIdx[1],
				body: []byte{0x00, 0x41, 0x01, 0x24, 0x00, 0x0b}},
			{name: "asyncify_stop_unwind", typeIdx: ctrlTypeIdx[2],
				body: []byte{0x00, 0x41, 0x00, 0x24, 0x00, 0x0b}},
			{name: "asyncify_start_rewind", typeIdx: ctrlTypeIdx[1],
				body: []byte{0x00, 0x41, 0x02, 0x24, 0x00, 0x0b}},
			{name: "asyncify_stop_rewind", typeIdx: ctrlTypeIdx[2],
				body: []byte{0x00, 0x41, 0x00, 0x24, 0x00, 0x0b}},
		}
	}

	// Function section: trampoline then control type indices.
	funcSection := wasmenc.ULEB128(uint32(len(b.slots) + len(ctrls)))
	for i := range b.slots {
		funcSection = append(funcSection, wasmenc.ULEB128(uint32(trampTypeIdx[i]))...)
	}
	for _, c := range ctrls {
		funcSection = append(funcSection, wasmenc.ULEB128(uint32(c.typeIdx))...)
	}

	// Export section: trampolines and controls, plus memory if declared.
	nExports := len(b.slots) + len(ctrls)
	if b.memPages > 0 {
		nExports++
	}
	exportSection := wasmenc.ULEB128(uint32(nExports))
	if b.memPages > 0 {
		exportSection = wasmenc.Name(exportSection, "memory")
		exportSection = append(exportSection, 0x02, 0x00)
	}
	for i, s := range b.slots {
		exportSection = wasmenc.Name(exportSection, s.Name)
		exportSection = append(exportSection, 0x00)
		exportSection = append(exportSection, wasmenc.ULEB128(uint32(len(imports)+i))...)
	}
	for i, c := range ctrls {
		exportSection = wasmenc.Name(exportSection, c.name)
		exportSection = append(exportSection, 0x00)
		exportSection = append(exportSection, wasmenc.ULEB128(uint32(len(imports)+len(b.slots)+i))...)
	}

	// Code section: trampoline then control bodies.
	codeSection := wasmenc.ULEB128(uint32(len(b.slots) + len(ctrls)))
	for _, s := range b.slots {
		body := b.trampBody(s, importIdx[s.Signature.Code()])
		codeSection = append(codeSection, wasmenc.ULEB128(uint32(len(body)))...)
		codeSection = append(codeSection, body...)
	}
	for _, c := range ctrls {
		codeSection = append(codeSection, wasmenc.ULEB128(uint32(len(c.body)))...)
		codeSection = append(codeSection, c.body...)
	}

	// Assemble.
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	wasm = wasmenc.Section(wasm, wasmenc.SectionType, typeSection)
	wasm = wasmenc.Section(wasm, wasmenc.SectionImport, importSection)
	wasm = wasmenc.Section(wasm, wasmenc.SectionFunc, funcSection)
	if b.memPages > 0 {
		memSection := []byte{0x01, 0x00}
		memSection = append(memSection, wasmenc.ULEB128(b.memPages)...)
		wasm = wasmenc.Section(wasm, wasmenc.SectionMemory, memSection)
	}
	if b.asyncify {
		// One mutable i32 holding the protocol state, initially normal.
		wasm = wasmenc.Section(wasm, wasmenc.SectionGlobal,
			[]byte{0x01, 0x7f, 0x01, 0x41, 0x00, 0x0b})
	}
	wasm = wasmenc.Section(wasm, wasmenc.SectionExport, exportSection)
	wasm = wasmenc.Section(wasm, wasmenc.SectionCode, codeSection)
	if len(b.segments) > 0 {
		dataSection := wasmenc.ULEB128(uint32(len(b.segments)))
		for _, seg := range b.segments {
			dataSection = append(dataSection, 0x00)
			dataSection = append(dataSection, 0x41)
			dataSection = append(dataSection, wasmenc.SLEB128(int32(seg.offset))...)
			dataSection = append(dataSection, 0x0b)
			dataSection = append(dataSection, wasmenc.ULEB128(uint32(len(seg.data)))...)
			dataSection = append(dataSection, seg.data...)
		}
		wasm = wasmenc.Section(wasm, wasmenc.SectionData, dataSection)
	}

	return wasm, nil
}

// trampParamValTypes returns the trampoline's own wasm parameter types:
// the identity followed by the feature parameters, 64-bit values still
// whole.
func (b *Builder) trampParamValTypes(s Slot) []byte {
	out := []byte{0x7f}
	for _, p := range s.Params {
		out = append(out, p.valType())
	}
	return out
}

// trampBody emits one trampoline: sentinel guard, pack, forward.
func (b *Builder) trampBody(s Slot, importIdx int) []byte {
	body := []byte{0x00} // no locals

	// identity == 0 means "no callback": return the neutral value
	// without crossing the boundary.
	body = append(body, 0x20, 0x00) // local.get 0
	body = append(body, 0x45)       // i32.eqz
	body = append(body, 0x04, 0x40) // if (no result)
	switch s.Signature.Result() {
	case signature.Void:
	case signature.Float32:
		body = append(body, 0x43, 0x00, 0x00, 0x00, 0x00) // f32.const 0
	default:
		body = append(body, 0x41, 0x00) // i32.const 0
	}
	body = append(body, 0x0f) // return
	body = append(body, 0x0b) // end

	// Forward (identity, packed payload...) to the multiplexer.
	body = append(body, 0x20, 0x00) // local.get 0
	for i, p := range s.Params {
		local := uint32(i + 1)
		switch p {
		case Int64:
			body = append(body, 0x20)
			body = append(body, wasmenc.ULEB128(local)...)
			body = append(body, 0xa7) // i32.wrap_i64 -> low half
			body = append(body, 0x20)
			body = append(body, wasmenc.ULEB128(local)...)
			body = append(body, 0x42, 0x20) // i64.const 32
			body = append(body, 0x88)       // i64.shr_u
			body = append(body, 0xa7)       // i32.wrap_i64 -> high half
		default:
			body = append(body, 0x20)
			body = append(body, wasmenc.ULEB128(local)...)
		}
	}
	body = append(body, 0x10)
	body = append(body, wasmenc.ULEB128(uint32(importIdx))...)
	body = append(body, 0x0b) // end

	return body
}

func encodeFuncType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, wasmenc.ULEB128(uint32(len(params)))...)
	out = append(out, params...)
	out = append(out, wasmenc.ULEB128(uint32(len(results)))...)
	out = append(out, results...)
	return out
}

func sigParamValTypes(sig signature.Signature) []byte {
	out := make([]byte, 0, sig.Arity())
	for _, vt := range sig.ParamValueTypes() {
		out = append(out, wasmenc.ValType(vt))
	}
	return out
}

func sigResultValTypes(sig signature.Signature) []byte {
	var out []byte
	for _, vt := range sig.ResultValueTypes() {
		out = append(out, wasmenc.ValType(vt))
	}
	return out
}

func kindsEqual(a, b []signature.Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func kindCodes(kinds []signature.Kind) string {
	out := make([]byte, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.Code())
	}
	return string(out)
}
