package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	yaml "gopkg.in/yaml.v2"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/config"
)

var cfgFile string
var logger watermill.LoggerAdapter = watermill.NopLogger{}

// v holds the flags, the config file and the environment overrides.
var v = config.NewViper()

var rootCmd = &cobra.Command{
	Use:   "autoconfig",
	Short: "A CLI for the Watermill AMQP auto-configuration.",
	Long: `A CLI for the Watermill AMQP auto-configuration.

Validate the configuration, declare the broker topology or run the configured listeners.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log := v.GetBool("log")
		debug := v.GetBool("debug")
		trace := v.GetBool("trace")
		if log || debug || trace {
			logger = watermill.NewStdLogger(debug, trace)
		} else {
			logger = watermill.NopLogger{}
		}

		writeConfig := v.GetString("writeConfig")
		if writeConfig != "" {
			settings := v.AllSettings()
			delete(settings, "writeconfig")
			b, err := yaml.Marshal(settings)
			if err != nil {
				return errors.Wrap(err, "could not marshal config to yaml")
			}

			if err := os.WriteFile(writeConfig, b, 0o644); err != nil {
				return errors.Wrap(err, "could not write config file")
			}
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().SortFlags = false

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.watermill-autoconfig.yaml)")

	outputFlags := pflag.NewFlagSet("output", pflag.ExitOnError)
	outputFlags.BoolP("log", "l", false, "If true, the logger output is sent to stderr. No logger output otherwise.")
	ensure(v.BindPFlag("log", outputFlags.Lookup("log")))

	outputFlags.BoolP("debug", "d", false, "If true, debug output is enabled from the logger")
	ensure(v.BindPFlag("debug", outputFlags.Lookup("debug")))

	outputFlags.Bool("trace", false, "If true, trace output is enabled from the logger")
	ensure(v.BindPFlag("trace", outputFlags.Lookup("trace")))

	outputFlags.String("write-config", "", "Write the config of the current command as yaml to the specified path")
	ensure(v.BindPFlag("writeConfig", outputFlags.Lookup("write-config")))

	rootCmd.PersistentFlags().AddFlagSet(outputFlags)

	rootCmd.PersistentFlags().String("amqp-uri", "", "URI of the AMQP broker, overrides amqp.uri")
	ensure(v.BindPFlag("amqp.uri", rootCmd.PersistentFlags().Lookup("amqp-uri")))

	rootCmd.AddCommand(validateCmd, declareCmd, runCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		v.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		v.AddConfigPath(home)
		v.SetConfigName(".watermill-autoconfig")
	}

	// If a config file is found, read it in.
	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "could not read config file"))
		os.Exit(1)
	}
}

func loadProperties() (config.Properties, error) {
	props, err := config.FromViper(v)
	if err != nil {
		return config.Properties{}, err
	}

	if err := props.Validate(); err != nil {
		return config.Properties{}, errors.Wrap(err, "invalid configuration")
	}

	return props, nil
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}
