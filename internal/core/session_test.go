package core

import "testing"

func TestSessionLifecycle(t *testing.T) {
	sess := NewSession("c1", " u1 ", 1)

	if sess.UserID != "u1" {
		t.Fatalf("expected trimmed user id, got %q", sess.UserID)
	}
	if sess.State() != StateConnecting {
		t.Fatalf("expected connecting, got %s", sess.State())
	}
	if sess.deliver(newEvent("x", nil)) {
		t.Fatalf("connecting sessions must not receive events")
	}

	if !sess.activate() {
		t.Fatalf("expected activation")
	}
	if sess.activate() {
		t.Fatalf("activation is one-shot")
	}

	if !sess.close() {
		t.Fatalf("expected close")
	}
	if sess.close() {
		t.Fatalf("close is one-shot")
	}
	if sess.State() != StateClosed {
		t.Fatalf("expected closed, got %s", sess.State())
	}
	if sess.activate() {
		t.Fatalf("closed sessions cannot be reactivated")
	}
	if _, ok := <-sess.Events(); ok {
		t.Fatalf("expected events channel to be closed")
	}
}

func TestSessionDropsWhenQueueFull(t *testing.T) {
	sess := NewSession("c1", "", 1)
	sess.activate()

	if !sess.deliver(newEvent("first", nil)) {
		t.Fatalf("expected first delivery")
	}
	if sess.deliver(newEvent("second", nil)) {
		t.Fatalf("expected drop on full queue")
	}
	if !sess.Anonymous() {
		t.Fatalf("expected anonymous session")
	}
}
