package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/willi-kappler/crunchgrid/examples/mandelbrot"
	"github.com/willi-kappler/crunchgrid/pkg/log"
	"github.com/willi-kappler/crunchgrid/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a mandelbrot worker",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	callbacks := mandelbrot.NewWorkerCallbacks()
	logger := log.WithRole("worker")

	w := worker.New(cfg, callbacks, logger)

	ctx, cancel := signalContext()
	defer cancel()

	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("worker %s: %w", w.ID(), err)
	}
	return nil
}
