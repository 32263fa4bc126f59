package main

import (
	"github.com/spf13/cobra"

	"github.com/inodb/vibe-burden/internal/pipeline"
)

func newLoaddbCmd() *cobra.Command {
	var (
		dir       string
		out       string
		overwrite bool
		number    int
		globals   string
		pheno     string
	)

	cmd := &cobra.Command{
		Use:     "Loaddb",
		Aliases: []string{"loaddb"},
		Short:   "Aggregate a directory of persisted sample tables",
		Long: `Load every sample table under --directory, optionally re-annotate them with
--globals, keep those whose phenotype matches --phenotype, and aggregate the
first --number of them (by sample id) into <directory>/gnomad_tb/<run-id>.`,
		Example: `  vibe-burden Loaddb -d tables
  vibe-burden Loaddb -d tables --phenotype '^Cardio' -n 100
  vibe-burden Loaddb -d tables -g globals.tsv --run-id cohort-2024`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := pipelineConfig()
			cfg.Overwrite = overwrite
			cfg.Globals = globals
			cfg.OutDir = out

			return withPipeline(cfg, func(p *pipeline.Pipeline) error {
				res, err := p.Loaddb(cmd.Context(), dir, pipeline.LoaddbOptions{
					Phenotype: pheno,
					Number:    number,
				})
				if err != nil {
					return err
				}
				printResult(res)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "directory", "d", ".", "Directory holding the sample tables")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Directory for the TSV export (default: parent of --directory)")
	cmd.Flags().BoolVarP(&overwrite, "overwrite", "r", false, "Overwrite an existing aggregate for this run id")
	cmd.Flags().IntVarP(&number, "number", "n", -1, "Number of tables to aggregate (-1 for all)")
	cmd.Flags().StringVarP(&globals, "globals", "g", "", "Tab-delimited metadata file replacing stored metadata")
	cmd.Flags().StringVar(&pheno, "phenotype", "", "Regular expression selecting samples by phenotype")

	return cmd
}
