package main

import (
	"encoding/json"
	"fmt"

	"github.com/danmuck/weedcore/internal/host"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDescribeCmd(opts *options) *cobra.Command {
	var (
		format string
		plugin bool
	)
	cmd := &cobra.Command{
		Use:   "describe <filter>",
		Short: "Print the plant graph of a filter class",
		Long: `Walks a filter class, or a plugin's info plant with --plugin, and prints
every leaf. Referenced plants are expanded once; later references and
links back to the plugin are shown by handle only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := opts.load()
			defer rt.Close()

			var (
				node *host.Node
				err  error
			)
			if plugin {
				node, err = rt.DescribePlugin(args[0])
			} else {
				node, err = rt.Describe(args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(node); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(node)
			default:
				return fmt.Errorf("unknown format %q (want yaml or json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "output format: yaml|json")
	cmd.Flags().BoolVar(&plugin, "plugin", false, "describe a plugin instead of a filter")
	return cmd
}
