package exit

import "testing"

func TestSignal_FireClosesDone(t *testing.T) {
	s := New()
	if s.Fired() {
		t.Fatal("new signal should not be fired")
	}
	s.Fire()
	if !s.Fired() {
		t.Fatal("expected signal to be fired")
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done channel to be closed")
	}
}

func TestSignal_FireIsIdempotent(t *testing.T) {
	s := New()
	s.Fire()
	s.Fire()
}
