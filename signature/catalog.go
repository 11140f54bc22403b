package signature

// The catalog is the closed list of shapes the current callback feature
// set needs. Growth is additive: a new shape is one new entry.
var (
	// VP is void(identity): bare notification, no payload.
	VP = MustNew(Void, Handle)

	// IP is int32(identity): polled checks such as progress handlers.
	IP = MustNew(Int32, Handle)

	// VPP is void(identity, text): message and log-line events.
	VPP = MustNew(Void, Handle, Handle)

	// VPF is void(identity, float32): gauge and fraction reporting.
	VPF = MustNew(Void, Handle, Float32)

	// VPIP is void(identity, int32, text): coded log lines.
	VPIP = MustNew(Void, Handle, Int32, Handle)

	// IPI is int32(identity, int32): authorization-style checks.
	IPI = MustNew(Int32, Handle, Int32)

	// VPIPPJH is void(identity, int32, text, text, int64): change
	// notification with an operation code, two names, and a row id
	// split into 32-bit halves.
	VPIPPJH = MustNew(Void, Handle, Int32, Handle, Handle, Int64Lo, Int64Hi)
)

var catalog = []Signature{VP, IP, VPP, VPF, VPIP, IPI, VPIPPJH}

var byCode = func() map[string]Signature {
	m := make(map[string]Signature, len(catalog))
	for _, s := range catalog {
		m[s.Code()] = s
	}
	return m
}()

// Catalog returns every cataloged signature in declaration order.
func Catalog() []Signature {
	return append([]Signature(nil), catalog...)
}

// Lookup returns the cataloged signature for a canonical code.
func Lookup(code string) (Signature, bool) {
	s, ok := byCode[code]
	return s, ok
}
