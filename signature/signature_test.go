package signature

import (
	"testing"

	"github.com/tetratelabs/wazero/api"
)

func TestNew_Codes(t *testing.T) {
	tests := []struct {
		result Kind
		params []Kind
		want   string
	}{
		{Void, []Kind{Handle}, "vp"},
		{Int32, []Kind{Handle}, "ip"},
		{Void, []Kind{Handle, Handle}, "vpp"},
		{Void, []Kind{Handle, Float32}, "vpf"},
		{Void, []Kind{Handle, Int32, Handle}, "vpip"},
		{Void, []Kind{Handle, Int32, Handle, Handle, Int64Lo, Int64Hi}, "vpippjh"},
	}

	for _, tt := range tests {
		s, err := New(tt.result, tt.params...)
		if err != nil {
			t.Fatalf("New(%v): %v", tt.want, err)
		}
		if s.Code() != tt.want {
			t.Errorf("code = %q, want %q", s.Code(), tt.want)
		}
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		result Kind
		params []Kind
	}{
		{"no params", Void, nil},
		{"identity not first", Void, []Kind{Int32, Handle}},
		{"void param", Void, []Kind{Handle, Void}},
		{"lo without hi", Void, []Kind{Handle, Int64Lo}},
		{"lo followed by int32", Void, []Kind{Handle, Int64Lo, Int32}},
		{"hi without lo", Void, []Kind{Handle, Int64Hi}},
		{"result lo half", Int64Lo, []Kind{Handle}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.result, tt.params...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSignature_ValueTypes(t *testing.T) {
	wantParams := []api.ValueType{
		api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
		api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
	}
	got := VPIPPJH.ParamValueTypes()
	if len(got) != len(wantParams) {
		t.Fatalf("param count = %d, want %d", len(got), len(wantParams))
	}
	for i := range got {
		if got[i] != wantParams[i] {
			t.Errorf("param %d = %v, want %v", i, got[i], wantParams[i])
		}
	}

	if res := VPIPPJH.ResultValueTypes(); len(res) != 0 {
		t.Errorf("void result types = %v, want empty", res)
	}
	if res := IP.ResultValueTypes(); len(res) != 1 || res[0] != api.ValueTypeI32 {
		t.Errorf("ip result types = %v, want [i32]", res)
	}
	if res := VPF.ParamValueTypes(); res[1] != api.ValueTypeF32 {
		t.Errorf("vpf float param = %v, want f32", res[1])
	}
}

func TestCatalog_Lookup(t *testing.T) {
	for _, s := range Catalog() {
		got, ok := Lookup(s.Code())
		if !ok {
			t.Errorf("Lookup(%q) not found", s.Code())
			continue
		}
		if !got.Equal(s) {
			t.Errorf("Lookup(%q) returned different signature", s.Code())
		}
	}

	if _, ok := Lookup("zz"); ok {
		t.Error("Lookup of unknown code should fail")
	}
}

func TestCatalog_CodesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range Catalog() {
		if seen[s.Code()] {
			t.Errorf("duplicate code %q", s.Code())
		}
		seen[s.Code()] = true
	}
}

func TestSignature_ParamsCopy(t *testing.T) {
	p := VPP.Params()
	p[0] = Int32
	if VPP.Params()[0] != Handle {
		t.Error("Params() must return a copy")
	}
}
