package protocol

import "testing"

func TestEncodeConnect(t *testing.T) {
	got := EncodeConnect(`{"locale":"en"}`)
	want := `connect 31 {"locale":"en"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeSubscribe(t *testing.T) {
	got := EncodeSubscribe("5", `{"type":"ticker"}`)
	want := `sub 5 {"type":"ticker"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeUnsubscribe(t *testing.T) {
	got := EncodeUnsubscribe("5", `{"type":"ticker"}`)
	want := `unsub 5 {"type":"ticker"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Inbound
	}{
		{"snapshot with embedded spaces", `1 A {"a": 1, "b": 2}`, Inbound{ID: "1", Kind: "A", Payload: `{"a": 1, "b": 2}`}},
		{"delta", `7 D =5 +World`, Inbound{ID: "7", Kind: "D", Payload: "=5 +World"}},
		{"close with no payload", `7 C`, Inbound{ID: "7", Kind: "C", Payload: ""}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.line)
			if err != nil {
				t.Fatalf("Decode(%q): %v", tc.line, err)
			}
			if got != tc.want {
				t.Fatalf("Decode(%q) = %+v, want %+v", tc.line, got, tc.want)
			}
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []string{"", "onlyid", "nonnumeric A {}"}
	for _, line := range tests {
		if _, err := Decode(line); err == nil {
			t.Fatalf("Decode(%q): expected error", line)
		}
	}
}
