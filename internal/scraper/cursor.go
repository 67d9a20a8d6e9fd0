package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/JustJay7/courtlight/pkg/logger"
)

type cursorState int

const (
	cursorInit cursorState = iota
	cursorQueried
	cursorPaging
	cursorDone
)

func (s cursorState) String() string {
	switch s {
	case cursorInit:
		return "init"
	case cursorQueried:
		return "queried"
	case cursorPaging:
		return "paging"
	case cursorDone:
		return "done"
	}
	return "unknown"
}

// SessionCursor walks one judge's search results. The portal remembers the
// query in server-side session state after the search POST and pages by
// plain GETs that carry none of the query, so each cursor owns a private
// session and pages strictly in order.
type SessionCursor struct {
	fetcher *Fetcher
	parser  *Parser
	portal  Portal
	entity  Entity
	from    time.Time
	to      time.Time
	logger  *logger.Logger

	session *Session
	state   cursorState
	nextURL string
	seen    map[string]bool
	pages   int
	err     error
}

func NewSessionCursor(f *Fetcher, portal Portal, entity Entity, from, to time.Time, log *logger.Logger) *SessionCursor {
	log = log.With("judge", entity.Name)
	return &SessionCursor{
		fetcher: f,
		parser:  NewParser(log),
		portal:  portal,
		entity:  entity,
		from:    from,
		to:      to,
		logger:  log,
		seen:    make(map[string]bool),
	}
}

// Next returns the next results page. It returns io.EOF once the last page
// has been returned. After a failure every call returns the same error.
func (c *SessionCursor) Next(ctx context.Context) (*ListingPage, error) {
	if c.err != nil {
		return nil, c.err
	}

	var (
		page *ListingPage
		err  error
	)
	switch c.state {
	case cursorInit:
		if err := c.open(ctx); err != nil {
			return nil, c.fail(err)
		}
		c.state = cursorQueried
		fallthrough
	case cursorQueried:
		page, err = Fetch(ctx, c.fetcher, c.session, c.searchRequest(), c.decode)
	case cursorPaging:
		page, err = Fetch(ctx, c.fetcher, c.session, Request{Method: http.MethodGet, URL: c.nextURL}, c.decode)
	default:
		return nil, io.EOF
	}
	if err != nil {
		return nil, c.fail(err)
	}

	if err := c.advance(page); err != nil {
		return nil, c.fail(err)
	}
	return page, nil
}

// Pages reports how many pages the cursor has returned.
func (c *SessionCursor) Pages() int {
	return c.pages
}

// Close releases the session. It is safe to call more than once.
func (c *SessionCursor) Close() {
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	if c.err == nil {
		c.state = cursorDone
	}
}

func (c *SessionCursor) open(ctx context.Context) error {
	session, err := c.fetcher.NewSession()
	if err != nil {
		return err
	}
	c.session = session
	return openPortalSession(ctx, c.fetcher, session, c.portal)
}

func (c *SessionCursor) searchRequest() Request {
	return Request{
		Method: http.MethodPost,
		URL:    c.portal.SearchURL,
		Form: url.Values{
			"ctype":  {c.entity.ID},
			"frdate": {c.from.Format(DateLayout)},
			"todate": {c.to.Format(DateLayout)},
			"Submit": {"Submit"},
		},
	}
}

func (c *SessionCursor) decode(res *Response) (*ListingPage, error) {
	return c.parser.ParseListing(res, c.entity.Name)
}

func (c *SessionCursor) advance(page *ListingPage) error {
	c.pages++
	c.logger.Debug("Fetched results page",
		"state", c.state.String(),
		"page", c.pages,
		"records", len(page.Records),
	)

	if page.NextURL == "" {
		c.Close()
		return nil
	}
	if c.seen[page.NextURL] {
		return fmt.Errorf("pagination loop: %s already visited", page.NextURL)
	}
	c.seen[page.NextURL] = true
	c.nextURL = page.NextURL
	c.state = cursorPaging
	return nil
}

func (c *SessionCursor) fail(err error) error {
	c.err = fmt.Errorf("judge %q (%s) after %d pages: %w", c.entity.Name, c.state, c.pages, err)
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	c.state = cursorDone
	return c.err
}
