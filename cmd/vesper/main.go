// Package main runs a Vesper server with a few demonstration routes, static
// files from an htdocs directory and a Prometheus metrics listener.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/FumingPower3925/vesper/pkg/session"
	"github.com/FumingPower3925/vesper/pkg/vesper"
)

func main() {
	defaults := vesper.DefaultConfig()

	addr := flag.String("addr", defaults.Addr, "listen address")
	htdocs := flag.String("htdocs", defaults.HtdocsPath, "static file root (empty disables static files)")
	workers := flag.Int("workers", defaults.WorkerPoolSize, "worker pool size")
	loops := flag.Int("loops", 0, "number of event loops (0 for one per CPU)")
	maxConns := flag.Uint("max-conns", 0, "maximum open connections (0 for unlimited)")
	cors := flag.Bool("cors", true, "add CORS headers to route responses")
	sessions := flag.Bool("sessions", true, "attach sessions to route requests")
	metricsAddr := flag.String("metrics", ":9090", "Prometheus metrics address (empty disables)")
	verbose := flag.Bool("v", false, "log server events")
	flag.Parse()

	logger := log.New(os.Stdout, "[vesper] ", log.LstdFlags)

	config := defaults
	config.Addr = *addr
	config.HtdocsPath = *htdocs
	config.WorkerPoolSize = *workers
	config.NumEventLoop = *loops
	if uint64(*maxConns) > math.MaxUint32 {
		logger.Fatalf("-max-conns %d exceeds %d", *maxConns, uint64(math.MaxUint32))
	}
	config.MaxConnections = uint32(*maxConns)
	config.CORS = *cors
	config.Sessions = *sessions
	if *verbose {
		config.Logger = logger
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.NeverSample())))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	config.Tracing = vesper.TracingConfig{
		TracerProvider: tp,
		TracerName:     "vesper",
		Propagator:     propagation.TraceContext{},
	}

	store := session.NewMemoryStore()
	router := vesper.NewRouter()
	router.Use(vesper.Recovery(), vesper.RequestID(), vesper.Logger())
	registerRoutes(router, store)

	server := vesper.New(config, vesper.Options{
		Router:   router,
		Sessions: store,
	})

	if err := server.Start(); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
	logger.Printf("Listening on %s (htdocs: %q)", config.Addr, config.HtdocsPath)

	var metrics *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metrics = &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("Metrics listener failed: %v", err)
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if metrics != nil {
		_ = metrics.Shutdown(ctx)
	}
	if err := server.Stop(ctx); err != nil {
		logger.Printf("Server forced to shutdown: %v", err)
	}
}

func registerRoutes(router *vesper.Router, store *session.MemoryStore) {
	router.GET("/hello", func(req *vesper.Request, resp *vesper.Response) error {
		name, ok := req.String("name")
		if !ok {
			name = "world"
		}
		resp.SendString("Hello, %s!", name)
		return resp.Complete(200)
	})

	router.GET("/users/:id", func(req *vesper.Request, resp *vesper.Response) error {
		id, _ := req.String("id")
		if err := resp.SendJSON(map[string]string{"id": id}); err != nil {
			return err
		}
		return resp.Complete(200)
	})

	router.POST("/echo", func(req *vesper.Request, resp *vesper.Response) error {
		values := make(map[string]string, req.Params().Len())
		for _, k := range req.Params().Keys() {
			if v, ok := req.String(k); ok {
				values[k] = v
			}
		}
		if err := resp.SendJSON(values); err != nil {
			return err
		}
		return resp.Complete(200)
	})

	router.POST("/login", func(req *vesper.Request, resp *vesper.Response) error {
		s := req.Session()
		if s == nil {
			return resp.Complete(400)
		}
		token, err := store.Authenticate(s.ID())
		if err != nil {
			return err
		}
		resp.AddHeader("Set-Cookie", "token="+token+"; path=/;")
		if err := resp.SendJSON(map[string]string{"token": token}); err != nil {
			return err
		}
		return resp.Complete(200)
	})

	router.Handle("GET", "/private", true, func(req *vesper.Request, resp *vesper.Response) error {
		s := req.Session()
		if s == nil {
			return resp.Complete(403)
		}
		resp.SendString("session %s", s.ID())
		return resp.Complete(200)
	})
}
