package mcp

import (
	"encoding/json"
	"testing"
)

func TestNegotiateProtocolVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		requested string
		want      string
	}{
		{"2025-06-18", "2025-06-18"},
		{"2025-03-26", "2025-03-26"},
		{"2024-11-05", "2024-11-05"},
		{"2023-01-01", LatestProtocolVersion},
		{"", LatestProtocolVersion},
	}
	for _, tc := range cases {
		if got := NegotiateProtocolVersion(tc.requested); got != tc.want {
			t.Errorf("NegotiateProtocolVersion(%q) = %q, want %q", tc.requested, got, tc.want)
		}
	}
}

func TestCallToolResult_EmptyTextBlockOnWire(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(CallToolResult{Content: []ContentBlock{TextBlock("")}})
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Content []map[string]any `json:"content"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Content) != 1 || decoded.Content[0]["type"] != "text" {
		t.Fatalf("unexpected wire form %s", b)
	}
	if text, ok := decoded.Content[0]["text"]; !ok || text != "" {
		t.Fatalf("unexpected wire form %s", b)
	}
}
