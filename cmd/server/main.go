package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/bootstrap"
)

func main() {
	app, err := bootstrap.NewApp()
	if err != nil {
		logrus.Fatalf("Failed to initialize flat server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Start()
	app.Log.WithField("addr", app.HttpServer.Addr).Info("Flat server running, waiting for shutdown signal")

	<-ctx.Done()
	app.Log.Info("Shutdown signal received, draining rooms and workers")
	app.Shutdown()
}
