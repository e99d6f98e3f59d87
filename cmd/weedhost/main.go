package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/weedcore/internal/config"
	"github.com/danmuck/weedcore/internal/host"
	"github.com/danmuck/weedcore/internal/logging"
	"github.com/danmuck/weedcore/internal/plugins/builtin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	cfg        config.HostConfig
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "weedhost: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "weedhost",
		Short:         "Load weed plugins and inspect the filters they publish",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime()
			if cmd.Annotations["config"] == "skip" {
				return nil
			}
			cfg := config.DefaultHostConfig()
			if opts.configPath != "" {
				loaded, err := config.LoadHostConfig(opts.configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if level, ok := logging.ParseLevel(strings.TrimSpace(cfg.LogLevel)); ok {
				zerolog.SetGlobalLevel(level)
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "host config file (toml)")
	root.AddCommand(
		newListCmd(opts),
		newDescribeCmd(opts),
		newServeCmd(opts),
		newConfigCmd(),
	)
	return root
}

// load builds a runtime with every built-in plugin loaded.
func (o *options) load() *host.Runtime {
	rt := host.New(o.cfg, builtin.Registry())
	rt.LoadAll()
	return rt
}
