package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ThreeDotsLabs/watermill-autoconfig/bootstrap"
	"github.com/ThreeDotsLabs/watermill-autoconfig/config"
	"github.com/ThreeDotsLabs/watermill-autoconfig/registry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the provider and consumer activation and consume until interrupted",
	Long: `Run the full startup sequence: declare the provider topology and register the configured listeners.

The only handler available is "` + LogListenerName + `", which prints every received message to stdout.
Consuming stops on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := loadProperties()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		handlers := registry.New()
		handlers.MustRegister(LogListenerName, &logListener{out: cmd.OutOrStdout(), logger: logger})

		return run(ctx, props, handlers)
	},
}

func init() {
	runCmd.Flags().Bool("metrics", false, "Expose Prometheus metrics and the running listeners over HTTP")
	ensure(v.BindPFlag("metrics.enabled", runCmd.Flags().Lookup("metrics")))

	runCmd.Flags().String("metrics-addr", ":8081", "Address of the metrics server")
	ensure(v.BindPFlag("metrics.addr", runCmd.Flags().Lookup("metrics-addr")))
}

func run(ctx context.Context, props config.Properties, handlers *registry.Registry) error {
	app, err := bootstrap.Start(ctx, props, handlers, bootstrap.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("Running, press Ctrl+C to stop", nil)
	<-ctx.Done()

	return app.Close()
}
