package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/larkspur-bio/tfrank/internal/config"
	"github.com/larkspur-bio/tfrank/internal/grn"
)

var networkCmd = &cobra.Command{
	Use:   "network <file>",
	Short: "Inspect a regulatory network file",
	Long: "Loads a network file the same way the influence pipeline would and\n" +
		"reports its node and edge counts, useful for checking inputs before a run.",
	Args: cobra.ExactArgs(1),
	RunE: runNetwork,
}

func init() {
	rootCmd.AddCommand(networkCmd)

	networkCmd.Flags().Int("edges", 0, "number of top edges to load")
	networkCmd.Flags().Bool("full-output", false, "load extended edge attributes")
	networkCmd.Flags().String("sort-by", "", "column used to select top edges")
}

func runNetwork(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	opts := grn.DefaultReadOptions()
	opts.Edges = cfg.Edges
	opts.SortBy = cfg.SortBy
	opts.Separator = cfg.Separator

	if v, _ := cmd.Flags().GetInt("edges"); v != 0 {
		opts.Edges = v
	}
	if v, _ := cmd.Flags().GetBool("full-output"); v {
		opts.Extended = true
	}
	if v, _ := cmd.Flags().GetString("sort-by"); v != "" {
		opts.SortBy = v
	}

	g, err := grn.ReadNetwork(args[0], opts)
	if err != nil {
		return err
	}

	regulators := 0
	for _, name := range g.SortedNames() {
		id, _ := g.Lookup(name)
		if g.OutDegree(id) > 0 {
			regulators++
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "nodes:      %d\n", g.NumNodes())
	fmt.Fprintf(out, "edges:      %d\n", g.NumEdges())
	fmt.Fprintf(out, "regulators: %d\n", regulators)
	fmt.Fprintf(out, "extended:   %v\n", g.Extended())
	return nil
}
