// Command vectorsvc runs the platform's Vector Index Service (C4) as its
// own process: chunking, embedding, ANN search, and the chunk lifecycle
// coupling to document delete/reprocess, reached by cmd/gateway and
// cmd/worker over HTTP rather than in-process.
//
// Grounded on the same cobra/viper entrypoint shape as cmd/gateway, since
// both are long-running HTTP servers wired from the same config.Config.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scholaris/core/common"
	"github.com/scholaris/core/config"
	"github.com/scholaris/core/platform"
	"github.com/scholaris/core/vector"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vectorsvc",
	Short: "serves the platform's vector index and similarity search",
	Run:   runServer,
}

func init() {
	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
	})
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "HTTP port (overrides SCHOLARIS_VECTOR_SERVICE_PORT)")
	viper.BindPFlag("vector_service_port", rootCmd.PersistentFlags().Lookup("port"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	logger := common.ServiceLogger("vectorsvc", "1.0.0")

	cfg, err := config.Load("SCHOLARIS")
	if err != nil {
		logger.WithError(err).Fatal("loading configuration")
	}
	if port := viper.GetInt("vector_service_port"); port != 0 {
		cfg.VectorServicePort = port
	}

	deps, err := platform.BuildVectorService(cfg)
	if err != nil {
		logger.WithError(err).Fatal("wiring vector service")
	}
	defer deps.Close()

	e := vector.NewHTTPServer(deps.Service, cfg.Debug)

	port := cfg.VectorServicePort
	if port == 0 {
		port = 8081
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logger.Infof("listening on port %d", cfg.VectorServicePort)
		if err := e.StartServer(srv); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server exited unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("graceful shutdown failed")
	}
}
