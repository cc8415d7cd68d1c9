package stdio

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
)

func TestOptions_NilKeepsDefaults(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, WithIO(nil, nil), WithLogger(nil), WithUserProvider(nil))
	if h.r != os.Stdin || h.w != os.Stdout {
		t.Fatal("nil streams must keep stdin and stdout")
	}
	if h.l != slog.Default() {
		t.Fatal("nil logger must keep slog.Default")
	}
	if _, ok := h.userProvider.(OSUserProvider); !ok {
		t.Fatalf("nil provider must keep OSUserProvider, got %T", h.userProvider)
	}

	var in, out bytes.Buffer
	h = NewHandler(nil, WithIO(&in, nil), WithUserProvider(StaticUserProvider("u")))
	if h.r != &in || h.w != os.Stdout {
		t.Fatal("WithIO must replace only the non-nil stream")
	}
	h = NewHandler(nil, WithIO(nil, &out))
	if h.r != os.Stdin || h.w != &out {
		t.Fatal("WithIO must replace only the non-nil stream")
	}
}
