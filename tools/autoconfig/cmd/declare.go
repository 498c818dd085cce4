package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ThreeDotsLabs/watermill-autoconfig/autoconfig"
	amqpinfra "github.com/ThreeDotsLabs/watermill-autoconfig/message/infrastructure/amqp"
)

var declareCmd = &cobra.Command{
	Use:   "declare",
	Short: "Declare the provider topology on the broker",
	Long: `Run only the provider activation: declare the exchanges, queues and bindings configured
under amqp.provider. Nothing is declared when the provider is disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := loadProperties()
		if err != nil {
			return err
		}

		descriptor := props.ProviderActivationSet()
		if !descriptor.Enabled {
			logger.Info("Provider disabled, nothing to declare", nil)
			return nil
		}

		conn, err := amqpinfra.NewConnection(props.AMQPConfig().Connection, logger)
		if err != nil {
			return errors.Wrap(err, "could not connect to AMQP")
		}
		defer func() {
			if err := conn.Close(); err != nil {
				logger.Error("Could not close connection", err, nil)
			}
		}()

		admin, err := amqpinfra.NewAdmin(conn, logger)
		if err != nil {
			return err
		}

		return autoconfig.NewProviderActivator(autoconfig.InitProvider, logger).Activate(descriptor, admin)
	},
}
