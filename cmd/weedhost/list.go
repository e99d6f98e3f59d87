package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(opts *options) *cobra.Command {
	var showPlugins bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded filters, or plugins with --plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := opts.load()
			defer rt.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if showPlugins {
				fmt.Fprintln(w, "PLUGIN\tSTATE\tABI\tAPI\tFILTERS\tBYTES\tERROR")
				for _, p := range rt.Plugins() {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
						p.Name, p.State, p.ABI, p.API, len(p.Filters), p.BytesInUse, p.Error)
				}
				return w.Flush()
			}
			fmt.Fprintln(w, "FILTER\tNAME\tCATEGORY\tIN\tOUT\tPARAMS")
			for _, f := range rt.Filters() {
				category := f.Category.String()
				if f.Subcategory != 0 {
					category += "/" + f.Subcategory.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					f.Key, f.Name, category, f.InChannels, f.OutChannels, strings.Join(f.InParams, ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&showPlugins, "plugins", false, "list plugins instead of filters")
	return cmd
}
