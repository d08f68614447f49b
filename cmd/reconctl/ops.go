package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/danmuck/reconctl/internal/operations"
	"github.com/danmuck/reconctl/internal/server"
	"github.com/spf13/cobra"
)

func newOpsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List catalog operations and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := operations.NewCatalog()
			if err != nil {
				return err
			}
			infos := server.Describe(registry)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, paramSummary(info.Params), info.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}

func paramSummary(params []server.ParamInfo) string {
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.Required {
			parts = append(parts, p.Name)
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s=%v]", p.Name, p.Default))
	}
	return strings.Join(parts, " ")
}
