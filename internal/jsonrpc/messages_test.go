package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestAnyMessage_Type(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, KindRequest},
		{"string id request", `{"jsonrpc":"2.0","id":"a","method":"ping"}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, KindNotification},
		{"response", `{"jsonrpc":"2.0","id":1,"result":{}}`, KindResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var msg AnyMessage
			if err := json.Unmarshal([]byte(tc.in), &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := msg.Type(); got != tc.want {
				t.Fatalf("Type() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAnyMessage_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		`{"jsonrpc":"1.0","id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":1,"method":"ping","result":{}}`,
		`{"jsonrpc":"2.0","id":1}`,
		`{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":1,"message":"x"}}`,
		`not json`,
	} {
		var msg AnyMessage
		if err := json.Unmarshal([]byte(in), &msg); err == nil {
			t.Errorf("expected error for %s", in)
		}
	}
}

func TestErrorResponse_NullID(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(NewErrorResponse(nil, ErrorCodeParseError, "parse error", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"jsonrpc":"2.0","error":{"code":-32700,"message":"parse error"},"id":null}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	t.Parallel()

	var a, b RequestID
	if err := json.Unmarshal([]byte(`7`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`"7"`), &b); err != nil {
		t.Fatal(err)
	}
	if a.String() != "7" || b.String() != "7" {
		t.Fatalf("unexpected string forms %q %q", a.String(), b.String())
	}
	out, err := json.Marshal(&a)
	if err != nil || string(out) != "7" {
		t.Fatalf("marshal numeric id: %s %v", out, err)
	}
	out, err = json.Marshal(&b)
	if err != nil || string(out) != `"7"` {
		t.Fatalf("marshal string id: %s %v", out, err)
	}
}
