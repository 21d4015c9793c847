// Command gatecid is the quality-gate CI server.
//
// It accepts push events over HTTP, plans one build per push with one
// job per declared gate, and runs the gates in parallel against a local
// working copy of the pushed commit.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/gateci/internal/executor"
	"github.com/example/gateci/internal/observability"
	"github.com/example/gateci/internal/service"
	"github.com/example/gateci/internal/storage/sqlite"
	"github.com/example/gateci/internal/web"
	"github.com/example/gateci/internal/workflow"
)

// Config holds the server configuration.
type Config struct {
	WebPort      int
	HealthPort   int
	DebugPort    int
	SQLitePath   string
	WorkflowPath string
	Workspace    string
}

func main() {
	// Load configuration
	cfg := loadConfig()

	// Enable profiling
	runtime.SetMutexProfileFraction(1)
	runtime.SetBlockProfileRate(1)

	// Create metrics infrastructure
	metrics := observability.NewMetrics()

	// Start debug server for pprof and metrics
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics)
		// pprof endpoints are registered automatically via import
		debugAddr := fmt.Sprintf(":%d", cfg.DebugPort)
		log.Printf("Starting debug server on %s (pprof + metrics)", debugAddr)
		if err := http.ListenAndServe(debugAddr, mux); err != nil {
			log.Printf("Debug server error: %v", err)
		}
	}()

	// Load the workflow definition
	log.Printf("Loading workflow from %s", cfg.WorkflowPath)
	wf, err := workflow.ParseFile(cfg.WorkflowPath)
	if err != nil {
		log.Fatalf("Failed to parse workflow: %v", err)
	}
	if err := workflow.Validate(wf); err != nil {
		log.Fatalf("Invalid workflow: %v", err)
	}
	runtimeVersion, err := wf.ActiveRuntime()
	if err != nil {
		log.Fatalf("Invalid workflow: %v", err)
	}
	log.Printf("Workflow %q: %d gates, runtime %s", wf.Name, len(wf.Jobs), runtimeVersion)

	// Initialize storage with metrics
	log.Printf("Initializing SQLite storage at %s", cfg.SQLitePath)
	store, err := sqlite.NewWithMetrics(cfg.SQLitePath, metrics)
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	// Run migrations
	log.Println("Running database migrations...")
	if err := store.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create services with metrics
	orchestratorSvc := service.NewOrchestratorWithMetrics(store, metrics)
	engine := service.NewEngineWithMetrics(store, executor.NewLocalExecutor(), service.EngineConfig{
		Workspace: cfg.Workspace,
	}, metrics)

	// Start web server
	webAddr := fmt.Sprintf(":%d", cfg.WebPort)
	webServer := web.NewServer(webAddr, orchestratorSvc, engine, wf)
	go func() {
		if err := webServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Printf("Web server error: %v", err)
		}
	}()

	// gRPC health endpoint for load balancers and orchestrators
	healthAddr := fmt.Sprintf(":%d", cfg.HealthPort)
	lis, err := net.Listen("tcp", healthAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", healthAddr, err)
	}
	grpcServer := grpc.NewServer()
	healthSvc := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSvc)
	healthSvc.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")

		healthSvc.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		// Let in-flight builds finish before stopping
		log.Println("Waiting for running builds...")
		engine.Wait()

		log.Println("Stopping health server...")
		grpcServer.GracefulStop()
	}()

	log.Printf("Starting gateci server on %s (health on %s)", webAddr, healthAddr)
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatalf("Health server failed: %v", err)
	}
}

func loadConfig() Config {
	cfg := Config{
		WebPort:      8080,
		HealthPort:   50051,
		DebugPort:    6060,
		SQLitePath:   "gateci.db",
		WorkflowPath: workflow.DefaultFileName,
	}

	// Override from environment
	if port := os.Getenv("WEB_PORT"); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &cfg.WebPort); err != nil {
			log.Printf("Invalid WEB_PORT, using default: %v", err)
		}
	}

	if port := os.Getenv("HEALTH_PORT"); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &cfg.HealthPort); err != nil {
			log.Printf("Invalid HEALTH_PORT, using default: %v", err)
		}
	}

	if port := os.Getenv("DEBUG_PORT"); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &cfg.DebugPort); err != nil {
			log.Printf("Invalid DEBUG_PORT, using default: %v", err)
		}
	}

	if path := os.Getenv("SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	if path := os.Getenv("WORKFLOW_PATH"); path != "" {
		cfg.WorkflowPath = path
	}

	if dir := os.Getenv("WORKSPACE_DIR"); dir != "" {
		cfg.Workspace = dir
	}

	return cfg
}
