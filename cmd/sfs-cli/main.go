package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "sfs-cli",
		Short: "Command line client for SmartFox game servers",
		Long: `sfs-cli connects to a SmartFox server over its socket protocol,
falling back to the BlueBox HTTP tunnel when the socket is unreachable.

Settings come from flags, or from SFS_* environment variables with --env.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.host, "host", "", "server host")
	flags.IntVar(&opts.port, "port", 0, "server socket port (default 9339)")
	flags.StringVar(&opts.zone, "zone", "", "zone to log into")
	flags.StringVarP(&opts.user, "user", "u", "", "user name, empty for a guest login")
	flags.StringVarP(&opts.password, "password", "p", "", "password")
	flags.BoolVar(&opts.fromEnv, "env", false, "read the connection settings from SFS_* environment variables")
	flags.BoolVar(&opts.noFallback, "no-fallback", false, "do not fall back to the HTTP tunnel")
	flags.BoolVar(&opts.queued, "queued", false, "deliver events through the queue instead of immediately")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "time allowed to connect and log in")

	rootCmd.AddCommand(
		roomsCmd(opts),
		chatCmd(opts),
		benchCmd(opts),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
