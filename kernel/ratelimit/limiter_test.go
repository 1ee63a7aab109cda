package ratelimit

import "testing"

func TestAllowPermitsWithinBurst(t *testing.T) {
	l := New(1, 2)
	if !l.Allow("actor-1") {
		t.Fatal("expected first request to be allowed")
	}
	if !l.Allow("actor-1") {
		t.Fatal("expected second request within burst to be allowed")
	}
}

func TestAllowRejectsBeyondBurst(t *testing.T) {
	l := New(1, 1)
	if !l.Allow("actor-1") {
		t.Fatal("expected first request to be allowed")
	}
	if l.Allow("actor-1") {
		t.Fatal("expected second immediate request to exceed the burst of 1")
	}
}

func TestAllowTracksActorsIndependently(t *testing.T) {
	l := New(1, 1)
	if !l.Allow("actor-1") {
		t.Fatal("expected actor-1's first request to be allowed")
	}
	if !l.Allow("actor-2") {
		t.Fatal("expected actor-2 to have its own independent bucket")
	}
}

func TestNilLimiterIsUnthrottled(t *testing.T) {
	var l *Limiter
	for i := 0; i < 100; i++ {
		if !l.Allow("actor-1") {
			t.Fatal("expected a nil limiter to never throttle")
		}
	}
}

func TestZeroValueConfigIsUnthrottled(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("actor-1") {
			t.Fatal("expected rate 0 / burst 0 to leave Submit unthrottled")
		}
	}
}
