package commands

import (
	"fmt"

	"github.com/JustJay7/courtlight/internal/content"
	"github.com/spf13/cobra"
)

func newPopulateContentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "populate-contents <db_path>",
		Short: "Downloads, extracts and deduplicates the text of judgements that have none.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			extractor, err := content.NewExtractor(a.cfg.TextExtractor, a.cfg.PdfToTextPath)
			if err != nil {
				return err
			}

			f := a.fetcher()
			populator := content.NewPopulator(a.store, f,
				content.NewAcquirer(f, extractor, a.cfg.DocumentsDir, a.log),
				a.cfg.WorkerPoolSize,
				a.log,
			)

			summary, err := populator.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: %d pending, %d stored, %d merged as duplicates, %d failed\n",
				summary.RunID, summary.Pending, summary.Stored, summary.Merged, summary.Failed)
			return nil
		},
	}
}
