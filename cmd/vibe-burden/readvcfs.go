package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-burden/internal/pipeline"
)

func newReadvcfsCmd() *cobra.Command {
	var (
		inputs    []string
		dest      string
		out       string
		overwrite bool
		globals   string
	)

	cmd := &cobra.Command{
		Use:     "Readvcfs",
		Aliases: []string{"readvcfs"},
		Short:   "Normalize VCF files into sample tables and aggregate them",
		Long: `Normalize each annotated VCF into <dest>/<sample-id>, reusing sample tables
that already exist unless --overwrite is given, then aggregate every sample
into <dest>/gnomad_tb and export <out>/gnomad_tb<run-id>.tsv.

Inputs may be VCF files, directories containing VCF files, or list files
naming one VCF path per line.`,
		Example: `  vibe-burden Readvcfs -f S1.vcf,S2.vcf.gz -d tables
  vibe-burden Readvcfs -f batch1.vcf.txt -d tables -g globals.tsv
  vibe-burden Readvcfs -f /data/vcfs -d tables -r`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(inputs) == 0 {
				return &usageError{cmd: cmd, err: fmt.Errorf("--file is required")}
			}
			cfg := pipelineConfig()
			cfg.Overwrite = overwrite
			cfg.Globals = globals
			cfg.OutDir = out

			return withPipeline(cfg, func(p *pipeline.Pipeline) error {
				res, err := p.Readvcfs(cmd.Context(), inputs, dest)
				if err != nil {
					return err
				}
				printResult(res)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&inputs, "file", "f", nil, "VCF files, list files or directories (comma separated or repeated)")
	cmd.Flags().StringVarP(&dest, "dest", "d", ".", "Destination directory for sample tables")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Directory for the TSV export (default: parent of --dest)")
	cmd.Flags().BoolVarP(&overwrite, "overwrite", "r", false, "Overwrite existing sample tables and aggregate")
	cmd.Flags().StringVarP(&globals, "globals", "g", "", "Tab-delimited metadata file: id, phenotype, mutation")

	return cmd
}
