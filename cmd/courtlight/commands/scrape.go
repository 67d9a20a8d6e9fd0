package commands

import (
	"fmt"

	"github.com/JustJay7/courtlight/internal/reconcile"
	"github.com/JustJay7/courtlight/internal/scraper"
	"github.com/spf13/cobra"
)

func newScrapeCasesCommand() *cobra.Command {
	var judges []string

	cmd := &cobra.Command{
		Use:   "scrape-cases <db_path> <from_date> <to_date>",
		Short: "Crawls every judge's judgement listing between two dd/mm/yyyy dates.",
		Long: `Crawls the judge directory and each judge's paginated judgement listing,
then merges the results into the database. Nothing is saved unless every
judge is crawled successfully.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parseDateRange(args[1], args[2])
			if err != nil {
				return err
			}

			a, err := bootstrap(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			f := a.fetcher()
			runner := reconcile.NewRunner(a.store,
				scraper.NewDirectoryFetcher(f, a.portal(), a.log),
				scraper.NewListingCrawler(f, a.portal(), a.log),
				a.cfg.MaxConcurrentScrapes,
				a.log,
			)

			summary, err := runner.ScrapeCases(cmd.Context(), reconcile.RunOptions{
				From:   from,
				To:     to,
				Judges: judges,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: %d judges, %d records, %d new judgements, %d new authorships, %d new cases\n",
				summary.RunID, summary.Entities, summary.Records,
				summary.Judgements, summary.Authorships, summary.Cases)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&judges, "judge", nil, "only crawl the judge with this directory name (repeatable)")
	return cmd
}
