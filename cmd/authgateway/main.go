// authgateway is the control plane of a small single sign-on gateway. It
// supervises an auth proxy and an HTTP reverse proxy as child processes and
// answers their access decision subrequests.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"authgateway/internal/platform/config"
	"authgateway/internal/platform/health"
)

var confPath string

var rootCmd = &cobra.Command{
	Use:           "authgateway",
	Short:         "Authenticating gateway for a fleet of small web apps",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway and its managed proxies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(confPath)
	},
}

var listDomainsCmd = &cobra.Command{
	Use:   "list-domains",
	Short: "Print the domains served by the HTTP proxy, for TLS certificates",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(confPath)
		if err != nil {
			return err
		}
		var names []string
		for _, app := range conf.UpstreamApps() {
			names = append(names, app.Upstream.Subdomain+"."+conf.Gateway.Domain)
		}
		sort.Strings(names)

		fmt.Fprintln(cmd.OutOrStdout(), conf.Gateway.Domain)
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gateway version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), health.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&confPath, "config", "",
		"path to the configuration file (default \""+config.DefaultConfFile+"\")")
	rootCmd.AddCommand(runCmd, listDomainsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
