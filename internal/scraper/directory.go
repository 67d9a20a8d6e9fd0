package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/JustJay7/courtlight/pkg/logger"
)

// ErrNoEntities means the directory page parsed but listed no judges, which
// on this portal only happens when the markup has changed.
var ErrNoEntities = errors.New("directory lists no judges")

// Portal holds the endpoints of the session-stateful portal. The landing page
// hands out the session cookie every other endpoint requires.
type Portal struct {
	LandingURL   string
	DirectoryURL string
	SearchURL    string
}

// DirectoryFetcher lists the judges known to the portal.
type DirectoryFetcher struct {
	fetcher *Fetcher
	parser  *Parser
	portal  Portal
	logger  *logger.Logger
}

func NewDirectoryFetcher(f *Fetcher, portal Portal, log *logger.Logger) *DirectoryFetcher {
	log = log.With("component", "directory")
	return &DirectoryFetcher{
		fetcher: f,
		parser:  NewParser(log),
		portal:  portal,
		logger:  log,
	}
}

// Entities yields every (name, id) pair in the directory. On failure it yields
// a single error and stops; a partial directory is never produced.
func (d *DirectoryFetcher) Entities(ctx context.Context) iter.Seq2[Entity, error] {
	return func(yield func(Entity, error) bool) {
		entities, err := d.fetch(ctx)
		if err != nil {
			yield(Entity{}, err)
			return
		}
		for _, e := range entities {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (d *DirectoryFetcher) fetch(ctx context.Context) ([]Entity, error) {
	session, err := d.fetcher.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if err := openPortalSession(ctx, d.fetcher, session, d.portal); err != nil {
		return nil, err
	}

	entities, err := Fetch(ctx, d.fetcher, session, Request{Method: http.MethodGet, URL: d.portal.DirectoryURL},
		func(res *Response) ([]Entity, error) {
			entities, err := d.parser.ParseDirectory(res)
			if err != nil {
				return nil, err
			}
			if len(entities) == 0 {
				return nil, ErrNoEntities
			}
			return entities, nil
		})
	if err != nil {
		return nil, fmt.Errorf("fetch judge directory: %w", err)
	}

	d.logger.Info("Fetched judge directory", "judges", len(entities))
	return entities, nil
}

// openPortalSession visits the landing page so the session's jar holds a
// portal cookie.
func openPortalSession(ctx context.Context, f *Fetcher, s *Session, portal Portal) error {
	_, err := Fetch(ctx, f, s, Request{Method: http.MethodGet, URL: portal.LandingURL},
		func(*Response) (struct{}, error) { return struct{}{}, nil })
	if err != nil {
		return fmt.Errorf("open portal session: %w", err)
	}
	return nil
}
