package signature

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/callbridge/errors"
)

// Kind is one element of the boundary type alphabet.
type Kind uint8

const (
	// Void is only valid as a result kind.
	Void Kind = iota
	// Int32 is a 32-bit integer.
	Int32
	// Handle is a pointer-sized opaque value: an identity, a text
	// pointer, or any other guest address.
	Handle
	// Float32 is a 32-bit float.
	Float32
	// Int64Lo is the low half of a 64-bit integer. Always immediately
	// followed by Int64Hi.
	Int64Lo
	// Int64Hi is the high half of a 64-bit integer.
	Int64Hi
)

// Code returns the one-letter canonical code for the kind.
func (k Kind) Code() byte {
	switch k {
	case Void:
		return 'v'
	case Int32:
		return 'i'
	case Handle:
		return 'p'
	case Float32:
		return 'f'
	case Int64Lo:
		return 'j'
	case Int64Hi:
		return 'h'
	}
	return '?'
}

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Int32:
		return "int32"
	case Handle:
		return "handle"
	case Float32:
		return "float32"
	case Int64Lo:
		return "int64-lo"
	case Int64Hi:
		return "int64-hi"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ValueType returns the wazero value type for the kind. Void has none.
func (k Kind) ValueType() (api.ValueType, bool) {
	switch k {
	case Int32, Handle, Int64Lo, Int64Hi:
		return api.ValueTypeI32, true
	case Float32:
		return api.ValueTypeF32, true
	}
	return 0, false
}

// Signature is an immutable boundary call shape. The first parameter is
// always a Handle carrying the identity.
type Signature struct {
	code   string
	params []Kind
	result Kind
}

// New builds a validated signature from a result kind and parameter kinds.
func New(result Kind, params ...Kind) (Signature, error) {
	switch result {
	case Void, Int32, Handle, Float32:
	default:
		return Signature{}, errors.InvalidInput(errors.PhaseGlue,
			fmt.Sprintf("result kind %s is not returnable", result))
	}

	if len(params) == 0 || params[0] != Handle {
		return Signature{}, errors.InvalidInput(errors.PhaseGlue,
			"first parameter must be the identity handle")
	}

	for i, p := range params {
		switch p {
		case Void:
			return Signature{}, errors.InvalidInput(errors.PhaseGlue,
				"void is not a parameter kind")
		case Int64Lo:
			if i+1 >= len(params) || params[i+1] != Int64Hi {
				return Signature{}, errors.InvalidInput(errors.PhaseGlue,
					"int64-lo must be immediately followed by int64-hi")
			}
		case Int64Hi:
			if i == 0 || params[i-1] != Int64Lo {
				return Signature{}, errors.InvalidInput(errors.PhaseGlue,
					"int64-hi must immediately follow int64-lo")
			}
		}
	}

	code := make([]byte, 0, len(params)+1)
	code = append(code, result.Code())
	for _, p := range params {
		code = append(code, p.Code())
	}

	return Signature{
		code:   string(code),
		params: append([]Kind(nil), params...),
		result: result,
	}, nil
}

// MustNew is New for catalog construction; panics on invalid shapes.
func MustNew(result Kind, params ...Kind) Signature {
	s, err := New(result, params...)
	if err != nil {
		panic(err)
	}
	return s
}

// Code returns the canonical short code, result letter first ("vpp").
// Multiplexer exports and trampoline imports are named by this code.
func (s Signature) Code() string {
	return s.code
}

// Result returns the result kind.
func (s Signature) Result() Kind {
	return s.result
}

// Params returns a copy of the parameter kinds, identity handle first.
func (s Signature) Params() []Kind {
	return append([]Kind(nil), s.params...)
}

// Arity returns the number of boundary parameters, identity included.
func (s Signature) Arity() int {
	return len(s.params)
}

// ParamValueTypes returns the wazero parameter types.
func (s Signature) ParamValueTypes() []api.ValueType {
	out := make([]api.ValueType, 0, len(s.params))
	for _, p := range s.params {
		vt, _ := p.ValueType()
		out = append(out, vt)
	}
	return out
}

// ResultValueTypes returns the wazero result types; empty for void.
func (s Signature) ResultValueTypes() []api.ValueType {
	if vt, ok := s.result.ValueType(); ok {
		return []api.ValueType{vt}
	}
	return nil
}

// Equal reports whether two signatures have the same shape.
func (s Signature) Equal(o Signature) bool {
	return s.code == o.code
}

func (s Signature) String() string {
	return s.code
}
