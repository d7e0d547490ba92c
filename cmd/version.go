package main

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/revolution1/unitgate/metrics"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	commit    = ""
	branch    = ""
	tag       = ""
	buildInfo = ""
	date      = ""
)

func printVersion() string {
	return fmt.Sprintf("%s (commit='%s', branch='%s', tag='%s', date='%s', build='%s')", version, commit, branch, tag, date, buildInfo)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), printVersion())
		},
	}
}

func init() {
	versionGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metrics.Namespace,
		Name:      "version",
		Help:      "version info of unitgate",
		ConstLabels: prometheus.Labels{
			"version":   version,
			"branch":    branch,
			"tag":       tag,
			"buildinfo": buildInfo,
			"date":      date,
		},
	})
	prometheus.MustRegister(versionGauge)
	versionGauge.Set(1)
}
