package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/feedquest-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}

	a.Start()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		a.Log.Info("Shutdown signal received, draining...")
		a.Close()
		os.Exit(0)
	}()

	addr := ":" + a.Cfg.Port
	fmt.Printf("Server listening on %s\n", addr)
	if err := a.Run(addr); err != nil {
		a.Log.Warn("Server failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}
