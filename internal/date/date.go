// Package date keeps a cached HTTP date string for response heads.
package date

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var (
	current atomic.Pointer[[]byte]

	mu      sync.Mutex
	tickers int
	stop    chan struct{}
)

// Start begins refreshing the cached value every 500ms. Calls nest; the
// refresher stops when every Start has been matched by a call to the
// returned function.
func Start() func() {
	mu.Lock()
	defer mu.Unlock()

	refresh()
	tickers++
	if tickers == 1 {
		stop = make(chan struct{})
		go run(stop)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			defer mu.Unlock()
			tickers--
			if tickers == 0 {
				close(stop)
			}
		})
	}
}

func run(done <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refresh()
		case <-done:
			return
		}
	}
}

func refresh() {
	b := []byte(time.Now().UTC().Format(http.TimeFormat))
	current.Store(&b)
}

// Current returns the cached date, formatting a fresh one when no refresher
// has been started.
func Current() []byte {
	if p := current.Load(); p != nil {
		return *p
	}
	return []byte(time.Now().UTC().Format(http.TimeFormat))
}
