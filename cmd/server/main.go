package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/storefront/internal/app"
	"github.com/example/storefront/internal/config"
)

func main() {
	cfg := config.Load()

	server, cleanup, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer cleanup()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Printf("Shutting down")
		if err := server.Shutdown(); err != nil {
			log.Printf("fiber.Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := server.Listen(":" + cfg.AppPort); err != nil {
		log.Printf("fiber.Listen error: %v", err)
	}
}
