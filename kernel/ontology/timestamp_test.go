package ontology

import "testing"

func TestLogicalTimestampCompareOrdersPhysicalThenLogical(t *testing.T) {
	a := LogicalTimestamp{Physical: 1, Logical: 5}
	b := LogicalTimestamp{Physical: 2, Logical: 0}
	if !a.Before(b) {
		t.Fatalf("expected %v before %v", a, b)
	}
	c := LogicalTimestamp{Physical: 1, Logical: 6}
	if !a.Before(c) {
		t.Fatalf("expected %v before %v", a, c)
	}
	if a.Compare(a) != 0 {
		t.Fatalf("expected equal timestamps to compare 0")
	}
}

func TestLogicalTimestampStringRoundTrip(t *testing.T) {
	ts := LogicalTimestamp{Physical: 42, Logical: 7}
	parsed, err := ParseLogicalTimestamp(ts.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != ts {
		t.Fatalf("round trip mismatch: got %v, want %v", parsed, ts)
	}
}

func TestParseLogicalTimestampZeroSentinel(t *testing.T) {
	parsed, err := ParseLogicalTimestamp("0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.IsZero() {
		t.Fatalf("expected zero timestamp, got %v", parsed)
	}
}

func TestParseLogicalTimestampMalformed(t *testing.T) {
	if _, err := ParseLogicalTimestamp("not-a-timestamp"); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}

func TestClockTickMonotonicWithinSamePhysical(t *testing.T) {
	c := NewClock()
	first := c.Tick(10)
	second := c.Tick(10)
	if !first.Before(second) {
		t.Fatalf("expected logical to advance within same physical tick: %v -> %v", first, second)
	}
	if second.Physical != first.Physical {
		t.Fatalf("expected physical to stay constant, got %d -> %d", first.Physical, second.Physical)
	}
}

func TestClockTickNeverRegressesPhysical(t *testing.T) {
	c := NewClock()
	c.Tick(100)
	regressed := c.Tick(5)
	if regressed.Physical != 100 {
		t.Fatalf("expected physical to be held at 100, got %d", regressed.Physical)
	}
}

func TestClockObserveAdvancesFutureTicks(t *testing.T) {
	c := NewClock()
	c.Observe(LogicalTimestamp{Physical: 50, Logical: 3})
	next := c.Tick(1)
	if !next.After(LogicalTimestamp{Physical: 50, Logical: 3}) {
		t.Fatalf("expected tick after observe to exceed observed timestamp, got %v", next)
	}
}
