// Package main ramps up HTTP/1.1 clients against an in-process Vesper server
// and reports throughput and dropped connections per step. Clients alternate
// between a route and a static file so both dispatch paths are loaded.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FumingPower3925/vesper/pkg/vesper"
)

// LoadConfig defines the configuration for a ramp-up load test
type LoadConfig struct {
	Addr           string
	MaxConnections uint32
	WorkerPoolSize int

	RampUpInterval time.Duration // Time between adding new clients
	ClientsPerStep int           // Number of clients to add each step
	TestDuration   time.Duration
	RequestTimeout time.Duration
	RequestDelay   time.Duration // Delay between requests per client
	FileSize       int           // Size of the static file clients fetch
}

// StepResult contains the counters for one measurement window
type StepResult struct {
	Clients     int
	Elapsed     time.Duration
	Requests    int64
	Successful  int64
	Dropped     int64
	StatusCodes map[int]int64
}

// LoadRunner drives the clients and collects step results
type LoadRunner struct {
	config  LoadConfig
	server  *vesper.Server
	htdocs  string
	clients atomic.Int32

	mu      sync.Mutex
	current StepResult
	steps   []StepResult
}

// NewLoadRunner creates a runner for config.
func NewLoadRunner(config LoadConfig) *LoadRunner {
	return &LoadRunner{
		config:  config,
		current: StepResult{StatusCodes: make(map[int]int64)},
	}
}

// StartServer writes the static fixture and starts the server.
func (lr *LoadRunner) StartServer() error {
	dir, err := os.MkdirTemp("", "vesper-load")
	if err != nil {
		return err
	}
	lr.htdocs = dir
	payload := bytes.Repeat([]byte("v"), lr.config.FileSize)
	if err := os.WriteFile(filepath.Join(dir, "payload.bin"), payload, 0o600); err != nil {
		return err
	}

	router := vesper.NewRouter()
	router.GET("/ping", func(_ *vesper.Request, resp *vesper.Response) error {
		resp.SendString("OK")
		return resp.Complete(200)
	})

	config := vesper.DefaultConfig()
	config.Addr = lr.config.Addr
	config.MaxConnections = lr.config.MaxConnections
	config.WorkerPoolSize = lr.config.WorkerPoolSize
	config.HtdocsPath = dir

	lr.server = vesper.New(config, vesper.Options{Router: router})
	return lr.server.Start()
}

// StopServer stops the server and removes the fixture.
func (lr *LoadRunner) StopServer() {
	if lr.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lr.server.Stop(ctx)
	}
	if lr.htdocs != "" {
		_ = os.RemoveAll(lr.htdocs)
	}
}

// Run ramps clients up for the configured duration.
func (lr *LoadRunner) Run() error {
	if err := lr.StartServer(); err != nil {
		return err
	}
	defer lr.StopServer()

	ctx, cancel := context.WithTimeout(context.Background(), lr.config.TestDuration)
	defer cancel()

	var wg sync.WaitGroup
	ramp := time.NewTicker(lr.config.RampUpInterval)
	defer ramp.Stop()
	measure := time.NewTicker(time.Second)
	defer measure.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			lr.rotate(time.Since(start))
			return nil
		case <-ramp.C:
			for i := 0; i < lr.config.ClientsPerStep; i++ {
				n := lr.clients.Add(1)
				wg.Add(1)
				go func() {
					defer wg.Done()
					lr.runClient(ctx, n%2 == 0)
				}()
			}
		case <-measure.C:
			lr.rotate(time.Since(start))
		}
	}
}

func (lr *LoadRunner) runClient(ctx context.Context, static bool) {
	client := &http.Client{
		Timeout:   lr.config.RequestTimeout,
		Transport: &http.Transport{DisableCompression: true, MaxIdleConnsPerHost: 1},
	}
	defer client.CloseIdleConnections()

	url := "http://" + lr.config.Addr + "/ping"
	if static {
		url = "http://" + lr.config.Addr + "/payload.bin"
	}

	for ctx.Err() == nil {
		req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				lr.track(0)
			}
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		lr.track(resp.StatusCode)

		time.Sleep(lr.config.RequestDelay)
	}
}

// track records one request outcome; status 0 marks a dropped connection.
func (lr *LoadRunner) track(status int) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.current.Requests++
	lr.current.StatusCodes[status]++
	switch status {
	case 0:
		lr.current.Dropped++
	case 200:
		lr.current.Successful++
	}
}

func (lr *LoadRunner) rotate(elapsed time.Duration) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.current.Clients = int(lr.clients.Load())
	lr.current.Elapsed = elapsed
	lr.steps = append(lr.steps, lr.current)
	lr.current = StepResult{StatusCodes: make(map[int]int64)}
}

// PrintResults prints one line per step and the totals. It returns the
// number of dropped connections.
func (lr *LoadRunner) PrintResults() int64 {
	fmt.Printf("\n=== Ramp-up Load Test Results ===\n")
	totals := make(map[int]int64)
	var requests, dropped int64
	var maxRPS float64
	maxAt := 0
	for _, s := range lr.steps {
		fmt.Printf("  %6s  %5d clients  %8d req  %8d ok  %5d dropped\n",
			s.Elapsed.Truncate(time.Second), s.Clients, s.Requests, s.Successful, s.Dropped)
		if rps := float64(s.Successful); rps > maxRPS {
			maxRPS, maxAt = rps, s.Clients
		}
		requests += s.Requests
		dropped += s.Dropped
		for code, n := range s.StatusCodes {
			totals[code] += n
		}
	}

	fmt.Printf("\nMax RPS: %.0f (at %d clients)\n", maxRPS, maxAt)
	fmt.Printf("Total Requests: %d\n", requests)

	fmt.Printf("\n=== Status Code Distribution ===\n")
	codes := make([]int, 0, len(totals))
	for code := range totals {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d (%.2f%%)\n", code, totals[code], float64(totals[code])/float64(requests)*100)
	}

	if dropped > 0 {
		fmt.Printf("\nFAILED: %d connections were dropped without an HTTP response\n", dropped)
	} else {
		fmt.Printf("\nPASSED: every request received an HTTP response\n")
	}
	return dropped
}

func main() {
	var (
		addr           = flag.String("addr", "127.0.0.1:8089", "Server address")
		maxConnections = flag.Uint("max-conn", 10000, "Server max connections")
		workers        = flag.Int("workers", 1024, "Server worker pool size")
		rampUpInterval = flag.Duration("rampup", 25*time.Millisecond, "Time between adding new clients")
		clientsPerStep = flag.Int("clients", 1, "Number of clients to add each step")
		testDuration   = flag.Duration("duration", 30*time.Second, "Test duration")
		requestTimeout = flag.Duration("timeout", 3*time.Second, "Request timeout")
		requestDelay   = flag.Duration("delay", 2*time.Millisecond, "Delay between requests per client")
		fileSize       = flag.Int("file-size", 100<<10, "Static file size in bytes")
	)
	flag.Parse()
	if uint64(*maxConnections) > math.MaxUint32 {
		log.Fatalf("-max-conn %d exceeds %d", *maxConnections, uint64(math.MaxUint32))
	}

	runner := NewLoadRunner(LoadConfig{
		Addr:           *addr,
		MaxConnections: uint32(*maxConnections),
		WorkerPoolSize: *workers,
		RampUpInterval: *rampUpInterval,
		ClientsPerStep: *clientsPerStep,
		TestDuration:   *testDuration,
		RequestTimeout: *requestTimeout,
		RequestDelay:   *requestDelay,
		FileSize:       *fileSize,
	})
	if err := runner.Run(); err != nil {
		log.Fatalf("Load test failed: %v", err)
	}

	if runner.PrintResults() > 0 {
		os.Exit(1)
	}
}
