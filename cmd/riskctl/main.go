package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"terratruce-gateway/internal/config"
	"terratruce-gateway/pkg/logging/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliOptions is shared by every subcommand through the persistent flags.
type cliOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "riskctl",
		Short:         "Terra Truce property risk tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("GATEWAY_CONFIG"), "path to config file")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "log to stderr")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newChatCmd(opts),
		newCacheCmd(opts),
	)
	return root
}

func (o *cliOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

// logger is silent unless --verbose so command output stays parseable.
func (o *cliOptions) logger() *zap.Logger {
	if o.verbose {
		return logging.NewLogger()
	}
	return zap.NewNop()
}
