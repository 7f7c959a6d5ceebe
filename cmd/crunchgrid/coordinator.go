package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/willi-kappler/crunchgrid/coordinator"
	"github.com/willi-kappler/crunchgrid/examples/mandelbrot"
	"github.com/willi-kappler/crunchgrid/pkg/log"
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Run the mandelbrot coordinator",
	RunE:  runCoordinator,
}

func init() {
	coordinatorCmd.Flags().String("metrics-addr", "", "Address to serve /metrics and /healthz on (disabled if empty)")
}

func runCoordinator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return err
	}

	job := mandelbrot.NewJob(mandelbrot.NewInfo())
	logger := log.WithRole("coordinator")

	var opts []coordinator.Option[int, []uint32]
	if metricsAddr != "" {
		opts = append(opts, coordinator.WithMetrics[int, []uint32](metricsAddr, prometheus.NewRegistry()))
	}

	coord := coordinator.New(cfg, job.Callbacks(), logger, opts...)

	ctx, cancel := signalContext()
	defer cancel()

	if err := coord.Run(ctx); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	return nil
}
