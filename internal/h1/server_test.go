package h1

import (
	"context"
	"testing"
)

func TestServerAdmit(t *testing.T) {
	s := NewServer(nil, Config{MaxConnections: 2})

	if !s.admit() || !s.admit() {
		t.Fatal("Expected the first two connections to be admitted")
	}
	if s.admit() {
		t.Error("Expected the third connection to be refused")
	}
	if got := s.ActiveConnections(); got != 2 {
		t.Errorf("Expected 2 active connections, got %d", got)
	}
}

func TestServerAdmitUnlimited(t *testing.T) {
	s := NewServer(nil, Config{})
	for i := 0; i < 100; i++ {
		if !s.admit() {
			t.Fatalf("Expected connection %d to be admitted", i)
		}
	}
}

func TestServerStopBeforeStart(t *testing.T) {
	s := NewServer(nil, Config{})
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}
