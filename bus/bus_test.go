package bus

import (
	"testing"

	"ssc/engine"
	"ssc/persist"
)

func TestCommandServerAppliesLetAndSnapshotsChange(t *testing.T) {
	eng := engine.New()
	abbrev := persist.NewAbbrevTable()

	s := &CommandServer{engine: eng, abbrev: abbrev}
	reply := s.handle([][]byte{[]byte(`{"line":"let A1 = 2+3"}`)})
	if !reply.OK {
		t.Fatalf("handle: unexpected error %q", reply.Error)
	}
	if got := eng.Sheet.Get(0, 0).Value; got != 5 {
		t.Fatalf("A1 = %v, want 5", got)
	}

	changed := s.snapshotChanged()
	found := false
	for _, c := range changed {
		if c.Row == 0 && c.Col == 0 && c.Value == 5 {
			found = true
		}
	}
	if !found {
		t.Fatalf("snapshotChanged missing A1: %v", changed)
	}

	// A second snapshot should report nothing new: the flag was cleared.
	if again := s.snapshotChanged(); len(again) != 0 {
		t.Fatalf("snapshotChanged not idempotent: %v", again)
	}
}

func TestCommandServerRejectsMalformedRequest(t *testing.T) {
	eng := engine.New()
	abbrev := persist.NewAbbrevTable()
	s := &CommandServer{engine: eng, abbrev: abbrev}

	if reply := s.handle(nil); reply.OK {
		t.Fatalf("expected empty request to be rejected")
	}
	if reply := s.handle([][]byte{[]byte(`not json`)}); reply.OK {
		t.Fatalf("expected malformed json to be rejected")
	}
}

func TestCommandServerSurfacesApplyError(t *testing.T) {
	eng := engine.New()
	abbrev := persist.NewAbbrevTable()
	s := &CommandServer{engine: eng, abbrev: abbrev}

	reply := s.handle([][]byte{[]byte(`{"line":"let A1 = +"}`)})
	if reply.OK {
		t.Fatalf("expected malformed expression to fail")
	}
	if reply.Error == "" {
		t.Fatalf("expected error text on failed apply")
	}
}

// A duplicate in-flight request with the same line collapses through the
// singleflight group onto one Apply call; this exercises the group's
// single-caller path directly rather than racing goroutines, since the
// underlying engine is not safe for concurrent mutation from two calls at
// once in the first place.
func TestCommandServerSingleflightKeyIsCommandLine(t *testing.T) {
	eng := engine.New()
	abbrev := persist.NewAbbrevTable()
	s := &CommandServer{engine: eng, abbrev: abbrev}

	line := `let A1 = 10`
	calls := 0
	_, err, _ := s.group.Do(line, func() (interface{}, error) {
		calls++
		return nil, persist.Apply(eng, abbrev, line)
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
