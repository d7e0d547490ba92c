package main

import (
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"os"
	"strconv"
	"strings"
	"time"
)

type logOptions struct {
	level       string
	debug       bool
	forceColors bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &logOptions{}
	rootCmd := &cobra.Command{
		Use:           "unitgate",
		Short:         "validate, inspect and serve application server configuration documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLog(opts)
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.level, "log-level", "info", "log level: trace, debug, info, warn, error")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug mode, overridden by the DEBUG env")
	flags.BoolVar(&opts.forceColors, "log-force-colors", false, "force colored log output")

	rootCmd.AddCommand(
		newValidateCmd(),
		newShowCmd(),
		newResolveCmd(),
		newExampleCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Errorf("%s\n\n%s", err, cmd.UsageString())
	})
	return rootCmd
}

func initLog(opts *logOptions) error {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  time.RFC3339,
		QuoteEmptyFields: true,
		ForceColors:      opts.forceColors,
	})
	level, err := log.ParseLevel(strings.ToLower(opts.level))
	if err != nil {
		return errors.Errorf("invalid log level %q", opts.level)
	}
	middleware.DebugMode, err = strconv.ParseBool(os.Getenv("DEBUG"))
	if err != nil {
		middleware.DebugMode = opts.debug
	}
	if middleware.DebugMode && level < log.DebugLevel {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.Debugf("LogLevel: %s", log.GetLevel())
	return nil
}
