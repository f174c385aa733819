package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/newtron-network/fabricplan/pkg/api"
	"github.com/newtron-network/fabricplan/pkg/metrics"
	"github.com/newtron-network/fabricplan/pkg/util"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sizing and allocation engine over HTTP",
	Long: `Serve the engine as a JSON API with Prometheus metrics.

Routes:
  POST /v1/topology/derive     derive a fabric spec
  POST /v1/allocations         allocate a fabric spec or an explicit spec
  POST /v1/allocations/audit   re-check a returned allocation
  POST /v1/ports/expand        expand port descriptors
  GET  /v1/profiles[/{id}]     list or show switch profiles
  GET  /healthz                liveness
  GET  /metrics                Prometheus metrics

Examples:
  fabricplan serve
  fabricplan serve --listen 127.0.0.1:9090 -C ./profiles`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveListen
		if addr == "" {
			addr = userSettings.ListenAddr
		}

		collector, err := metrics.NewCollector(nil)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}

		// Requests are logged at info level
		if !util.Logger.IsLevelEnabled(logrus.InfoLevel) {
			util.SetLogLevel("info")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := api.NewServer(api.ServerConfig{Address: addr}, loader.Catalog(), collector)
		return s.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (default from settings)")
}
