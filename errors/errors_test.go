package errors_test

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	apperrors "github.com/imazen/zencodecs/errors"
)

func TestKindOf(t *testing.T) {
	err := apperrors.New(apperrors.KindLimitExceeded, "png", "too wide")
	k, ok := apperrors.KindOf(err)
	if !ok || k != apperrors.KindLimitExceeded {
		t.Errorf("KindOf: got (%v, %v)", k, ok)
	}

	if _, ok := apperrors.KindOf(stderrors.New("plain")); ok {
		t.Error("plain error must not report a kind")
	}
	if _, ok := apperrors.KindOf(nil); ok {
		t.Error("nil must not report a kind")
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := apperrors.New(apperrors.KindDisabledFormat, "avif", "")
	outer := fmt.Errorf("while dispatching: %w", inner)

	if !apperrors.IsKind(outer, apperrors.KindDisabledFormat) {
		t.Error("kind must survive fmt.Errorf wrapping")
	}
	if apperrors.FormatOf(outer) != "avif" {
		t.Error("format must survive fmt.Errorf wrapping")
	}
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("short read")
	err := apperrors.Wrap(apperrors.KindInvalidInput, "gif", cause)

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause must be reachable through errors.Is")
	}
	if !strings.Contains(err.Error(), "short read") {
		t.Errorf("message must include the cause: %q", err.Error())
	}
	if apperrors.Wrap(apperrors.KindInvalidInput, "gif", nil) != nil {
		t.Error("wrapping nil must stay nil")
	}
}

func TestCodec(t *testing.T) {
	cause := stderrors.New("bad huffman table")
	err := apperrors.Codec("jpeg", cause)

	if !apperrors.IsKind(err, apperrors.KindCodec) {
		t.Errorf("got %v, want codec kind", err)
	}
	if apperrors.FormatOf(err) != "jpeg" {
		t.Errorf("format: got %q", apperrors.FormatOf(err))
	}
	if apperrors.Codec("jpeg", nil) != nil {
		t.Error("nil cause must stay nil")
	}
}

func TestErrorMessageShape(t *testing.T) {
	err := apperrors.New(apperrors.KindUnsupportedOperation, "jpeg", "lossless encoding not supported")
	msg := err.Error()
	for _, want := range []string{"unsupported operation", "jpeg", "lossless"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
