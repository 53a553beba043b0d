package date

import (
	"net/http"
	"testing"
	"time"
)

func TestCurrentParses(t *testing.T) {
	got := Current()
	if _, err := time.Parse(http.TimeFormat, string(got)); err != nil {
		t.Errorf("Expected an HTTP date, got %q: %v", got, err)
	}
}

func TestStartNests(t *testing.T) {
	stopA := Start()
	stopB := Start()

	mu.Lock()
	n := tickers
	mu.Unlock()
	if n != 2 {
		t.Errorf("Expected 2 active starts, got %d", n)
	}

	stopA()
	stopA()
	mu.Lock()
	n = tickers
	mu.Unlock()
	if n != 1 {
		t.Errorf("Expected a repeated stop to count once, got %d", n)
	}

	stopB()
	mu.Lock()
	n = tickers
	mu.Unlock()
	if n != 0 {
		t.Errorf("Expected no active starts, got %d", n)
	}

	if current.Load() == nil {
		t.Error("Expected Start to populate the cached date")
	}
}
