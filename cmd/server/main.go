package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/punchclock/internal/config"
	"github.com/hongminglow/punchclock/internal/server"
	"github.com/hongminglow/punchclock/internal/storage/memory"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	states := memory.New(cfg.SessionTTL, time.Minute)
	defer states.Close()

	srv, err := server.New(cfg, states)
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	go func() {
		log.Printf("punchclock listening on %s (backend %s)", cfg.HTTPAddress(), cfg.BackendURL)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
