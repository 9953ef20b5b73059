package delta

import "testing"

func TestApplyScenarios(t *testing.T) {
	tests := []struct {
		name   string
		prev   string
		script string
		want   string
	}{
		{"S1 copy then insert", "Hello", "=5 +World", "HelloWorld"},
		{"S2 copy then skip", "Hello World", "=5 -6", "Hello"},
		{"S3 full copy", "Hello World", "=11", "Hello World"},
		{"S4 empty delta yields empty document", "Hello World", "", ""},
		{"insert only", "", "+Hello", "Hello"},
		{"copy zero length", "Hello", "=0 +X", "X"},
		{"multiple inserts", "ab", "=1 +X +Y =1", "aXYb"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Apply(tc.prev, tc.script)
			if err != nil {
				t.Fatalf("Apply(%q, %q) returned error: %v", tc.prev, tc.script, err)
			}
			if got != tc.want {
				t.Fatalf("Apply(%q, %q) = %q, want %q", tc.prev, tc.script, got, tc.want)
			}
		})
	}
}

func TestApplyDoesNotMutatePrev(t *testing.T) {
	prev := "Hello World"
	snapshot := prev
	if _, err := Apply(prev, "=5 +!!!! -6"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if prev != snapshot {
		t.Fatalf("Apply mutated its input: got %q, want %q", prev, snapshot)
	}
}

func TestApplyRoundTrip(t *testing.T) {
	// A copy of the entire previous text followed by an append is a valid edit
	// script from S to some S'; apply must reproduce it exactly.
	prev := `{"price":100,"qty":5}`
	script := "=21 + "
	got, err := Apply(prev, script)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := prev
	if got != want {
		t.Fatalf("round trip mismatch: got %q want %q", got, want)
	}
}

func TestApplyRejectsCopyPastEnd(t *testing.T) {
	if _, err := Apply("Hi", "=10"); err == nil {
		t.Fatal("expected error copying past end of previous snapshot")
	}
}

func TestApplyRejectsSkipPastEnd(t *testing.T) {
	if _, err := Apply("Hi", "-10"); err == nil {
		t.Fatal("expected error skipping past end of previous snapshot")
	}
}

func TestApplyIgnoresTrailingCursor(t *testing.T) {
	// The patcher does not require the cursor to land exactly on len(prev);
	// trailing unread characters of prev are implicitly discarded.
	got, err := Apply("HelloWorld", "=5")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != "Hello" {
		t.Fatalf("got %q, want %q", got, "Hello")
	}
}

func TestApplyRejectsUnrecognizedToken(t *testing.T) {
	if _, err := Apply("Hi", "*5"); err == nil {
		t.Fatal("expected error for unrecognized token")
	}
}

func TestApplyRejectsNegativeCount(t *testing.T) {
	if _, err := Apply("Hi", "=-1"); err == nil {
		t.Fatal("expected error for negative count")
	}
}
