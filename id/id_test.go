package id_test

import (
	"encoding/json"
	"testing"

	"github.com/retouchd/retouch/id"
)

func TestNew_GeneratesPrefixedIDs(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() id.ID
		prefix id.Prefix
	}{
		{"job", id.NewJobID, id.PrefixJob},
		{"checkpoint", id.NewCheckpointID, id.PrefixCheckpoint},
		{"worker", id.NewWorkerID, id.PrefixWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.gen()
			if got.IsNil() {
				t.Fatal("generated ID is nil")
			}
			if got.Prefix() != tt.prefix {
				t.Errorf("Prefix() = %q, want %q", got.Prefix(), tt.prefix)
			}
			if got.String() == "" {
				t.Error("String() is empty")
			}
		})
	}
}

func TestNew_IDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		s := id.NewJobID().String()
		if seen[s] {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = true
	}
}

func TestParse_RoundTrip(t *testing.T) {
	orig := id.NewJobID()

	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse(%q): %v", orig.String(), err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip = %q, want %q", parsed.String(), orig.String())
	}
}

func TestParse_RejectsEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("Parse(\"\") should fail")
	}
}

func TestParseJobID_RejectsWrongPrefix(t *testing.T) {
	wkr := id.NewWorkerID()
	if _, err := id.ParseJobID(wkr.String()); err == nil {
		t.Errorf("ParseJobID(%q) should fail for worker prefix", wkr.String())
	}
}

func TestNil_Behavior(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil.IsNil() = false")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}
}

func TestID_JSONRoundTrip(t *testing.T) {
	orig := id.NewJobID()

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var back id.ID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.String() != orig.String() {
		t.Errorf("round trip = %q, want %q", back.String(), orig.String())
	}
}

func TestID_ScanAndValue(t *testing.T) {
	orig := id.NewJobID()

	v, err := orig.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var back id.ID
	if err := back.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if back.String() != orig.String() {
		t.Errorf("Scan/Value round trip = %q, want %q", back.String(), orig.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("Scan(nil) should yield Nil ID")
	}
}
