package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "phase and kind",
			err:  &Error{Phase: PhaseDispatch, Kind: KindNotFound},
			want: []string{"[dispatch]", "not_found"},
		},
		{
			name: "with slot and code",
			err:  &Error{Phase: PhaseGlue, Kind: KindSignatureMismatch, Slot: "on-change", Code: "vpp"},
			want: []string{"in slot on-change", "(signature vpp)"},
		},
		{
			name: "with detail",
			err:  &Error{Phase: PhaseRegister, Kind: KindExhausted, Detail: "identity space exhausted"},
			want: []string{"exhausted: identity space exhausted"},
		},
		{
			name: "with cause",
			err:  &Error{Phase: PhaseRuntime, Kind: KindInstantiation, Cause: fmt.Errorf("boom")},
			want: []string{"(caused by: boom)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(msg, w) {
					t.Errorf("message %q missing %q", msg, w)
				}
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := Exhausted(64)

	if !stderrors.Is(err, &Error{Phase: PhaseRegister, Kind: KindExhausted}) {
		t.Error("expected Is match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseDispatch, Kind: KindExhausted}) {
		t.Error("unexpected Is match on wrong phase")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Instantiation(cause, "host module")

	if !stderrors.Is(err, cause) {
		t.Error("expected unwrap to reach cause")
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("loading: %w", Exhausted(64))

	if !IsKind(err, KindExhausted) {
		t.Error("expected IsKind match through wrapping")
	}
	if IsKind(err, KindClosed) {
		t.Error("unexpected IsKind match on wrong kind")
	}
	if IsKind(fmt.Errorf("plain"), KindExhausted) {
		t.Error("unexpected IsKind match on plain error")
	}
}

func TestConstructors(t *testing.T) {
	if got := Closed(PhaseRegister, "registry"); got.Kind != KindClosed {
		t.Errorf("Closed kind = %s", got.Kind)
	}
	if got := InvalidInput(PhaseGlue, "empty name"); got.Kind != KindInvalidInput {
		t.Errorf("InvalidInput kind = %s", got.Kind)
	}
	if got := NotFound(PhaseRuntime, "export"); !strings.Contains(got.Error(), "export not found") {
		t.Errorf("NotFound message = %q", got.Error())
	}
	if got := Protocol(PhaseMarshal, "dangling pointer"); got.Phase != PhaseMarshal {
		t.Errorf("Protocol phase = %s", got.Phase)
	}
	m := SignatureMismatch("on-change", "vpp", "pp", "pi")
	if m.Slot != "on-change" || m.Code != "vpp" {
		t.Errorf("SignatureMismatch fields = %q %q", m.Slot, m.Code)
	}
	w := Wrap(PhaseDispatch, KindProtocol, fmt.Errorf("x"), "bad payload")
	if w.Cause == nil || w.Kind != KindProtocol {
		t.Error("Wrap did not retain cause and kind")
	}
}
