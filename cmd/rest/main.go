package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"leadgen-sync/internal/bootstrap"
	"leadgen-sync/internal/config"
	"leadgen-sync/internal/server"
	"leadgen-sync/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}

	// 3. Tracing (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer("leadgen-sync", container.Logger)
	defer shutdownTracer(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	go container.WebSocketHub.Run(ctx)
	go container.Session.Initialize(ctx)

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
	if err := container.Close(); err != nil {
		log.Printf("Cleanup error: %v", err)
	}
}
