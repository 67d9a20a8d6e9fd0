package scraper

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"github.com/JustJay7/courtlight/pkg/logger"
)

// ListingCrawler turns one judge's paginated results into a record stream.
type ListingCrawler struct {
	fetcher *Fetcher
	portal  Portal
	logger  *logger.Logger
}

func NewListingCrawler(f *Fetcher, portal Portal, log *logger.Logger) *ListingCrawler {
	return &ListingCrawler{
		fetcher: f,
		portal:  portal,
		logger:  log.With("component", "crawler"),
	}
}

// Records yields the judge's case records in page order, fetching each page
// only when the previous one has been consumed. A failure is yielded once as
// the final element. The sequence is single-use.
func (c *ListingCrawler) Records(ctx context.Context, entity Entity, from, to time.Time) iter.Seq2[CaseRecord, error] {
	return func(yield func(CaseRecord, error) bool) {
		cursor := NewSessionCursor(c.fetcher, c.portal, entity, from, to, c.logger)
		defer cursor.Close()

		records := 0
		for {
			page, err := cursor.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				yield(CaseRecord{}, err)
				return
			}
			for _, rec := range page.Records {
				records++
				if !yield(rec, nil) {
					return
				}
			}
			if page.NextURL == "" {
				break
			}
		}

		c.logger.Info("Finished crawling judge",
			"judge", entity.Name,
			"pages", cursor.Pages(),
			"records", records,
		)
	}
}
