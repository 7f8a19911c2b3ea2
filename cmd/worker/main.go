// Command worker runs the background document processing pool: it wires
// the same platform collaborators the gateway uses, starts the worker
// pool against the configured queue broker, and waits for a termination
// signal to drain in-flight jobs before exiting.
//
// Grounded on the teacher's registryservice/main.go: a plain func main with
// env-driven configuration and a signal channel, rather than the gateway's
// cobra command (this binary has no flags worth exposing).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scholaris/core/common"
	"github.com/scholaris/core/config"
	"github.com/scholaris/core/platform"
	"github.com/scholaris/core/worker"
)

func main() {
	logger := common.ServiceLogger("worker", "1.0.0")

	cfg, err := config.Load("SCHOLARIS")
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	services, err := platform.Build(ctx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("wiring platform services")
	}
	defer services.Close()

	poolCfg := worker.DefaultConfig()
	if cfg.MaxJobTimeout > 0 {
		poolCfg.HardTimeout = cfg.MaxJobTimeout
	}

	pool := worker.NewPool(services.Broker, services.Jobs, services.Pipeline, poolCfg)
	pool.Start()
	logger.Info("worker pool started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("draining in-flight jobs")
	pool.Stop()
}
