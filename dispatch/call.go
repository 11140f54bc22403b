package dispatch

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/callbridge/errors"
	"github.com/wasmbridge/callbridge/marshal"
	"github.com/wasmbridge/callbridge/registry"
	"github.com/wasmbridge/callbridge/signature"
)

// Call is one marshaled callback invocation handed to a closure.
// Accessors decode payload arguments lazily against guest memory; an
// accessor whose kind disagrees with the signature is a programming
// error and panics. Payload indexes start at 0 and exclude the leading
// identity.
//
// Text pointers are only valid for the duration of the call; accessors
// copy out and the returned values hold no reference to guest memory.
type Call struct {
	mem    api.Memory
	params []signature.Kind
	stack  []uint64
	sig    signature.Signature
}

func newCall(sig signature.Signature, mem api.Memory, stack []uint64) *Call {
	return &Call{
		sig:    sig,
		mem:    mem,
		params: sig.Params(),
		stack:  stack,
	}
}

// Signature returns the call's boundary shape.
func (c *Call) Signature() signature.Signature {
	return c.sig
}

// Identity returns the identity the guest passed.
func (c *Call) Identity() registry.Identity {
	return registry.Identity(api.DecodeU32(c.stack[0]))
}

// Len returns the number of payload arguments (i64 halves count as two).
func (c *Call) Len() int {
	return len(c.params) - 1
}

func (c *Call) kindAt(i int, want signature.Kind) uint64 {
	if i < 0 || i >= c.Len() {
		panic(errors.Protocol(errors.PhaseDispatch,
			fmt.Sprintf("payload index %d out of range for %s", i, c.sig.Code())))
	}
	if got := c.params[i+1]; got != want {
		panic(errors.Protocol(errors.PhaseDispatch,
			fmt.Sprintf("payload %d of %s is %s, accessed as %s", i, c.sig.Code(), got, want)))
	}
	return c.stack[i+1]
}

// Raw returns a payload argument without interpretation.
func (c *Call) Raw(i int) uint64 {
	if i < 0 || i >= c.Len() {
		panic(errors.Protocol(errors.PhaseDispatch,
			fmt.Sprintf("payload index %d out of range for %s", i, c.sig.Code())))
	}
	return c.stack[i+1]
}

// Int32 decodes an Int32 payload argument.
func (c *Call) Int32(i int) int32 {
	return int32(api.DecodeU32(c.kindAt(i, signature.Int32)))
}

// Handle decodes a Handle payload argument as a raw guest address.
func (c *Call) Handle(i int) uint32 {
	return api.DecodeU32(c.kindAt(i, signature.Handle))
}

// Float32 decodes a Float32 payload argument.
func (c *Call) Float32(i int) float32 {
	return marshal.Float32FromBits(api.DecodeU32(c.kindAt(i, signature.Float32)))
}

// Int64 joins the half pair starting at payload index i.
func (c *Call) Int64(i int) int64 {
	lo := api.DecodeU32(c.kindAt(i, signature.Int64Lo))
	hi := api.DecodeU32(c.kindAt(i+1, signature.Int64Hi))
	return marshal.JoinInt64(lo, hi)
}

// Text copies out the null-terminated string a Handle payload points at.
func (c *Call) Text(i int) string {
	return marshal.CString(c.mem, c.Handle(i))
}

// Bytes copies out a pointer+length region; ptrIdx and lenIdx name the
// Handle and Int32 payload arguments carrying the pair.
func (c *Call) Bytes(ptrIdx, lenIdx int) []byte {
	return marshal.Bytes(c.mem, c.Handle(ptrIdx), uint32(c.Int32(lenIdx)))
}
