package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"github.com/ThreeDotsLabs/watermill-autoconfig/autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/config"
	"github.com/ThreeDotsLabs/watermill-autoconfig/converter"
	"github.com/ThreeDotsLabs/watermill-autoconfig/tools/autoconfig/cmd/internal"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and print the resolved listener bindings",
	Long: `Load the configuration, validate it and print it as yaml, followed by the listener bindings
as they would be registered: converter tags are resolved and queue names are split.

Handlers are not looked up, as they only exist in the application.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := loadProperties()
		if err != nil {
			return err
		}

		return printResolved(cmd.OutOrStdout(), props, converter.DefaultFactory())
	},
}

type resolvedBinding struct {
	Target     string   `yaml:"target"`
	Method     string   `yaml:"method,omitempty"`
	Converter  string   `yaml:"converter,omitempty"`
	QueueNames []string `yaml:"queue_names,omitempty"`
	Skipped    bool     `yaml:"skipped,omitempty"`
}

func resolveBindings(set autoconfig.ConsumerActivationSet, converters autoconfig.ConverterFactory) ([]resolvedBinding, error) {
	resolved := make([]resolvedBinding, 0, len(set.Bindings))

	for _, binding := range set.Bindings {
		r := resolvedBinding{Target: binding.TargetName, Method: binding.MethodName}

		if strings.TrimSpace(binding.QueueNamesRaw) == "" {
			r.Skipped = true
			resolved = append(resolved, r)
			continue
		}

		conv, err := converters.Resolve(binding.ConverterType)
		if err != nil {
			return nil, errors.Wrapf(err, "binding of %s", binding.TargetName)
		}
		r.Converter = conv.Name()
		r.QueueNames = autoconfig.SplitQueueNames(binding.QueueNamesRaw)

		resolved = append(resolved, r)
	}

	return resolved, nil
}

func printResolved(out io.Writer, props config.Properties, converters autoconfig.ConverterFactory) error {
	b, err := yaml.Marshal(props)
	if err != nil {
		return errors.Wrap(err, "could not marshal properties to yaml")
	}
	fmt.Fprintf(out, "properties:\n%s", internal.Indent(string(b), "  "))

	if !props.AMQP.Consumer.Enabled {
		fmt.Fprintln(out, "bindings: [] # consumer disabled")
		return nil
	}

	bindings, err := resolveBindings(props.ConsumerActivationSet(), converters)
	if err != nil {
		return err
	}

	b, err = yaml.Marshal(bindings)
	if err != nil {
		return errors.Wrap(err, "could not marshal bindings to yaml")
	}
	fmt.Fprintf(out, "bindings:\n%s", internal.Indent(string(b), "  "))

	return nil
}
