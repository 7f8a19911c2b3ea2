// Command gateway runs the platform's single external HTTP surface: it
// loads configuration, wires every collaborator service through the
// platform package, and serves the API until signaled to stop.
//
// Grounded on the teacher's cli.RootCmd/runServer: a cobra command bound to
// viper-backed flags, a background goroutine running the HTTP server, and a
// signal-triggered graceful shutdown.
package main

import (
	"context"
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
	"github.com/scholaris/core/gateway"
	"github.com/scholaris/core/platform"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "serves the research paper analysis platform's HTTP API",
	Run:   runServer,
}

func init() {
	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
	})
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "HTTP port (overrides SCHOLARIS_SERVER_PORT)")
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	logger := common.ServiceLogger("gateway", "1.0.0")

	cfg, err := config.Load("SCHOLARIS")
	if err != nil {
		logger.WithError(err).Fatal("loading configuration")
	}
	if port := viper.GetInt("server_port"); port != 0 {
		cfg.ServerPort = port
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	services, err := platform.Build(ctx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("wiring platform services")
	}
	defer services.Close()

	gwCfg := gateway.DefaultConfig()
	gwCfg.Port = cfg.ServerPort
	gwCfg.Debug = cfg.Debug
	gwCfg.AllowedOrigins = cfg.CORSOrigins
	gwCfg.RequestTimeout = cfg.RequestTimeout

	srv := gateway.NewServer(gwCfg, gateway.ServerDeps{
		Auth:                services.Auth,
		Blacklist:           services.Blacklist,
		Limiter:             services.Limiter,
		Documents:           services.Documents,
		Jobs:                services.Jobs,
		Chunks:              services.Chunks,
		Broker:              services.Broker,
		Vectors:             services.Vectors,
		LLM:                 services.LLM,
		Files:               services.Files,
		Pipeline:            services.Pipeline,
		RequireAuthForRead:  cfg.RequireAuthForRead,
		RequireAuthForWrite: cfg.RequireAuthForWrite,
	})

	go func() {
		logger.Infof("listening on port %d", cfg.ServerPort)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server exited unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("graceful shutdown failed")
	}
}
