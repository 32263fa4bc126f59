package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-burden/internal/files"
)

func newFindtypeCmd() *cobra.Command {
	var source, dir, ext, regex string

	cmd := &cobra.Command{
		Use:     "Findtype",
		Aliases: []string{"findtype"},
		Short:   "Find all files of a given type",
		Long: `Walk a source directory for files with the given extension and write their
paths to <directory>/<source>.<type>.txt. Files whose base name was already
seen are written to duplicates_<source>.<type>.txt instead.`,
		Example: `  vibe-burden Findtype -s /data/batch1 -t vcf -d lists
  vibe-burden Findtype -s /data/batch1 -t vcf -r '\.vep\.vcf$'`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" || ext == "" {
				return &usageError{cmd: cmd, err: fmt.Errorf("--source and --type are required")}
			}
			res, err := files.Findtype(source, dir, ext, regex)
			if err != nil {
				return err
			}
			fmt.Printf("Found %d %s files in %s\n", len(res.Unique)+len(res.Duplicates), ext, source)
			fmt.Printf("  List: %s (%d)\n", res.ListPath, len(res.Unique))
			if res.DuplicatesPath != "" {
				fmt.Printf("  Duplicates: %s (%d)\n", res.DuplicatesPath, len(res.Duplicates))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Directory to be searched")
	cmd.Flags().StringVarP(&dir, "directory", "d", ".", "Directory the lists are written to")
	cmd.Flags().StringVarP(&ext, "type", "t", "", "File type (extension) to find")
	cmd.Flags().StringVarP(&regex, "regex", "r", "", "Only keep paths matching this regular expression")

	return cmd
}
