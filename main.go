package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource/postgres"
)

// Version is set at build time via ldflags
var Version = "dev"

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sitequery",
		Short:         "Answer natural-language questions about a site's data",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAskCmd())
	return rootCmd
}
