package main

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/config"
	"github.com/revolution1/unitgate/router"
	"github.com/revolution1/unitgate/types"
	"github.com/revolution1/unitgate/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var outputFormats = []string{config.FormatJSON, config.FormatYAML, "yml"}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "unitgate.json", "the path of the config document")
	_ = cmd.MarkFlagFilename("config", "json", "yaml", "yml")
}

func addOutputFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "output", "o", config.FormatJSON, "output format: json or yaml")
}

func checkOutput(format string) error {
	if !utils.StrSliceContainsI(outputFormats, format) {
		return errors.Errorf("unknown output format %q", format)
	}
	return nil
}

// loadValid loads a document and fails on any validation error.
func loadValid(path string) (*types.Config, error) {
	conf, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(conf); err != nil {
		return nil, errors.Wrapf(err, "%s is invalid", path)
	}
	return conf, nil
}

func newValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "validate a config document and print lint warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadValid(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range config.Lint(conf) {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintf(out, "%s: ok (%d listeners, %d routes, %d applications)\n",
				path, len(conf.Listeners), len(conf.Routes), len(conf.Applications))
			return nil
		},
	}
	addConfigFlag(cmd, &path)
	return cmd
}

func newShowCmd() *cobra.Command {
	var path, format string
	cmd := &cobra.Command{
		Use:   "show [path]",
		Short: "print the document with defaults applied, or the sub-tree at path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(format); err != nil {
				return err
			}
			conf, err := loadValid(path)
			if err != nil {
				return err
			}
			sub := ""
			if len(args) == 1 {
				sub = args[0]
			}
			v, err := config.Lookup(conf, sub)
			if err != nil {
				return err
			}
			out, err := config.Marshal(v, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	addConfigFlag(cmd, &path)
	addOutputFlag(cmd, &format)
	return cmd
}

func newResolveCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "resolve <listener> <uri>",
		Short: "print the action a request to the listener resolves to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadValid(path)
			if err != nil {
				return err
			}
			table, err := router.New(conf, nil)
			if err != nil {
				return err
			}
			defer table.Close()
			d, err := table.Resolve(args[0], args[1])
			if err != nil {
				return err
			}
			log.Debugf("resolved %s %s", args[0], args[1])
			fmt.Fprintln(cmd.OutOrStdout(), d.String())
			return nil
		},
	}
	addConfigFlag(cmd, &path)
	return cmd
}

func newExampleCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "example",
		Short: "print the reference document for ports 8000, 8001 and 8181",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(format); err != nil {
				return err
			}
			out, err := config.Marshal(config.Example(), format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	addOutputFlag(cmd, &format)
	return cmd
}
