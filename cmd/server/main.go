package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set by build script)
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "loandocs",
		Short:        "Loan document consent API",
		Version:      fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage: true,
	}
	// Empty path falls back to repository/conf/deployment.yaml, then cmd/server/repository/conf
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to deployment.yaml")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(cleanupCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
