package common

import (
	"errors"
	"testing"
)

func TestGuardNilView(t *testing.T) {
	if err := Guard(nil, "dsc"); err != nil {
		t.Fatalf("nil view should not block: %v", err)
	}
}

func TestPauseSwitchToggle(t *testing.T) {
	s := NewPauseSwitch()
	if err := Guard(s, "dsc"); err != nil {
		t.Fatalf("unexpected pause: %v", err)
	}
	s.Set(" DSC ", true)
	if err := Guard(s, "dsc"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if got := s.Paused(); len(got) != 1 || got[0] != "dsc" {
		t.Fatalf("unexpected paused list: %v", got)
	}
	s.Set("dsc", false)
	if err := Guard(s, "dsc"); err != nil {
		t.Fatalf("expected resume, got %v", err)
	}
}

func TestNilPauseSwitchNeverPaused(t *testing.T) {
	var s *PauseSwitch
	if s.IsPaused("dsc") {
		t.Fatalf("nil switch reported paused")
	}
}
