package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/larkspur-bio/tfrank/internal/config"
	"github.com/larkspur-bio/tfrank/internal/manifest"
	"github.com/larkspur-bio/tfrank/internal/pipeline"
	"github.com/larkspur-bio/tfrank/internal/telemetry"
	"github.com/larkspur-bio/tfrank/internal/watch"
)

var influenceCmd = &cobra.Command{
	Use:   "influence",
	Short: "Score and rank transcription factors for a cell-state transition",
	Long: "Builds the differential network between a source and target regulatory\n" +
		"network, scores every up-regulated transcription factor by its reach into\n" +
		"differentially expressed genes, and writes the ranked influence table.",
	RunE: runInfluence,
}

func init() {
	rootCmd.AddCommand(influenceCmd)

	influenceCmd.Flags().StringP("source", "s", "", "source-state network file")
	influenceCmd.Flags().StringP("target", "t", "", "target-state network file")
	influenceCmd.Flags().StringP("degenes", "d", "", "differential gene expression file")
	influenceCmd.Flags().StringP("outfile", "o", "", "output file for the influence table")
	influenceCmd.Flags().Int("edges", 0, "number of top edges to load per network")
	influenceCmd.Flags().IntP("workers", "n", 0, "number of scoring workers")
	influenceCmd.Flags().Bool("full-output", false, "load and write extended edge attributes")
	influenceCmd.Flags().String("sort-by", "", "network column used to select top edges")
	influenceCmd.Flags().Float64("padj-cutoff", 0, "adjusted p-value cutoff for differential expression")
	influenceCmd.Flags().Bool("filter-tfs", false, "prune redundant factors after ranking")
	influenceCmd.Flags().String("expression", "", "expression level (TPM) table used by --filter-tfs")
	influenceCmd.Flags().String("manifest", "", "TOML run manifest; flags override its values")
	influenceCmd.Flags().Bool("watch", false, "re-run the pipeline whenever an input file changes")
	influenceCmd.Flags().String("telemetry", "", "append JSONL run events to this file")
}

// buildOptions merges config defaults, an optional manifest, and flags into
// pipeline options. Precedence, lowest to highest: config, manifest, flags.
func buildOptions(cmd *cobra.Command, logger io.Writer) (pipeline.Options, error) {
	cfg := config.Load()
	opts := pipeline.Options{
		Edges:      cfg.Edges,
		Workers:    cfg.Workers,
		SortBy:     cfg.SortBy,
		Separator:  cfg.Separator,
		PadjCutoff: cfg.PadjCutoff,
		PathCutoff: cfg.PathCutoff,
		Overlap:    cfg.Overlap,
		TPM:        cfg.TPM,
		Logger:     logger,
	}

	if path, _ := cmd.Flags().GetString("manifest"); path != "" {
		m, err := manifest.Load(path)
		if err != nil {
			return opts, err
		}
		opts.SourcePath = m.Source
		opts.TargetPath = m.Target
		opts.DEGenes = m.DEGenes
		opts.Outfile = m.Outfile
		opts.Extended = m.Extended
		opts.FilterTFs = m.FilterTFs
		opts.TPMPath = m.Expression
		if m.Edges != 0 {
			opts.Edges = m.Edges
		}
		if m.Workers != 0 {
			opts.Workers = m.Workers
		}
		if m.SortBy != "" {
			opts.SortBy = m.SortBy
		}
		if m.Separator != "" {
			opts.Separator = m.Separator
		}
		if m.PadjCutoff != 0 {
			opts.PadjCutoff = m.PadjCutoff
		}
		if m.PathCutoff != 0 {
			opts.PathCutoff = m.PathCutoff
		}
		if m.Overlap != 0 {
			opts.Overlap = m.Overlap
		}
		if m.TPM != 0 {
			opts.TPM = m.TPM
		}
	}

	if v, _ := cmd.Flags().GetString("source"); v != "" {
		opts.SourcePath = v
	}
	if v, _ := cmd.Flags().GetString("target"); v != "" {
		opts.TargetPath = v
	}
	if v, _ := cmd.Flags().GetString("degenes"); v != "" {
		opts.DEGenes = v
	}
	if v, _ := cmd.Flags().GetString("outfile"); v != "" {
		opts.Outfile = v
	}
	if v, _ := cmd.Flags().GetInt("edges"); v != 0 {
		opts.Edges = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v != 0 {
		opts.Workers = v
	}
	if v, _ := cmd.Flags().GetBool("full-output"); v {
		opts.Extended = true
	}
	if v, _ := cmd.Flags().GetString("sort-by"); v != "" {
		opts.SortBy = v
	}
	if v, _ := cmd.Flags().GetFloat64("padj-cutoff"); v != 0 {
		opts.PadjCutoff = v
	}
	if v, _ := cmd.Flags().GetBool("filter-tfs"); v {
		opts.FilterTFs = true
	}
	if v, _ := cmd.Flags().GetString("expression"); v != "" {
		opts.TPMPath = v
	}

	if opts.Outfile == "" {
		return opts, fmt.Errorf("an output file is required (-o)")
	}
	if opts.DEGenes == "" {
		return opts, fmt.Errorf("a differential expression file is required (-d)")
	}
	return opts, nil
}

func runInfluence(cmd *cobra.Command, args []string) error {
	var logger io.Writer
	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		logger = os.Stderr
	}

	opts, err := buildOptions(cmd, logger)
	if err != nil {
		return err
	}

	telemetryPath, _ := cmd.Flags().GetString("telemetry")
	if telemetryPath == "" {
		telemetryPath = config.Load().Telemetry
	}
	if telemetryPath != "" {
		emitter, err := telemetry.NewEmitter(telemetryPath)
		if err != nil {
			return err
		}
		defer emitter.Close()
		opts.Telemetry = emitter
	}

	if err := pipeline.Run(opts); err != nil {
		return err
	}

	if watchMode, _ := cmd.Flags().GetBool("watch"); watchMode {
		return watchLoop(cmd, opts)
	}
	return nil
}

// watchLoop re-runs the pipeline whenever an input file changes. Failures
// of individual re-runs are reported but do not stop watching.
func watchLoop(cmd *cobra.Command, opts pipeline.Options) error {
	inputs := []string{opts.DEGenes}
	if opts.SourcePath != "" {
		inputs = append(inputs, opts.SourcePath)
	}
	if opts.TargetPath != "" {
		inputs = append(inputs, opts.TargetPath)
	}

	w, err := watch.NewWatcher(inputs...)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintln(cmd.ErrOrStderr(), "watching input files, re-running on change (ctrl-c to stop)")
	for change := range w.Changes {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s changed, re-running\n", change.Path)
		if err := pipeline.Run(opts); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "run failed: %v\n", err)
		}
	}
	return nil
}
