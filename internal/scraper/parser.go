package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/PuerkitoBio/goquery"
)

// DateLayout is the portal's dd/mm/yyyy date format, used both in listings
// and in search form fields.
const DateLayout = "02/01/2006"

const (
	listingRowSelector   = `table[align="center"] tr`
	directoryOptSelector = `select[name="ctype"] option`
	nextPageLinkText     = "NEXT >>"
)

// CaseRecord is one case row scraped from a judge's listing.
type CaseRecord struct {
	ReferenceURL string
	CaseNumber   string
	Date         time.Time
	// Party is the cell text as rendered, surrounding whitespace included.
	Party        string
	JudgeName    string
}

// ListingPage is one parsed page of a judge's results.
type ListingPage struct {
	URL     *url.URL
	Records []CaseRecord
	// NextURL is the absolute "NEXT >>" target, empty on the last page.
	NextURL string
}

// Entity is a judge as listed in the portal directory.
type Entity struct {
	Name string
	ID   string
}

// Parser turns portal pages into records.
type Parser struct {
	logger *logger.Logger
}

// NewParser creates a new parser instance
func NewParser(logger *logger.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseListing extracts the case rows and the next-page link from a results
// page. Rows whose second cell holds no hyperlink are layout rows and are
// skipped. A row with a hyperlink but a malformed date is an error.
func (p *Parser) ParseListing(res *Response, judgeName string) (*ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	page := &ListingPage{URL: res.URL}

	var rowErr error
	doc.Find(listingRowSelector).EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.ChildrenFiltered("td, th")
		if cells.Length() < 2 {
			return true
		}

		link := cells.Eq(1).Children().First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		if cells.Length() < 4 {
			rowErr = fmt.Errorf("row %d: expected 4 cells, got %d", i, cells.Length())
			return false
		}

		refURL, err := resolveURL(res.URL, href)
		if err != nil {
			rowErr = fmt.Errorf("row %d: %w", i, err)
			return false
		}

		dateText := strings.TrimSpace(cells.Eq(2).Text())
		date, err := time.Parse(DateLayout, dateText)
		if err != nil {
			rowErr = fmt.Errorf("row %d: unable to parse date %q: %w", i, dateText, err)
			return false
		}

		page.Records = append(page.Records, CaseRecord{
			ReferenceURL: refURL,
			CaseNumber:   strings.TrimSpace(link.Text()),
			Date:         date,
			Party:        cells.Eq(3).Text(),
			JudgeName:    judgeName,
		})
		return true
	})
	if rowErr != nil {
		return nil, fmt.Errorf("parse listing page %s: %w", res.URL, rowErr)
	}

	next := doc.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return strings.TrimSpace(a.Text()) == nextPageLinkText
	}).First()
	if href, ok := next.Attr("href"); ok {
		nextURL, err := resolveURL(res.URL, href)
		if err != nil {
			return nil, fmt.Errorf("parse next page link: %w", err)
		}
		page.NextURL = nextURL
	}

	p.logger.Debug("Parsed listing page",
		"url", res.URL.String(),
		"records", len(page.Records),
		"has_next", page.NextURL != "",
	)

	return page, nil
}

// ParseDirectory extracts (name, id) pairs from the judge selector.
// Options with an empty value are placeholders.
func (p *Parser) ParseDirectory(res *Response) ([]Entity, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse directory page: %w", err)
	}

	var entities []Entity
	doc.Find(directoryOptSelector).Each(func(_ int, opt *goquery.Selection) {
		id := strings.TrimSpace(opt.AttrOr("value", ""))
		if id == "" {
			return
		}
		entities = append(entities, Entity{
			Name: strings.TrimSpace(opt.Text()),
			ID:   id,
		})
	})

	return entities, nil
}

func resolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", href, err)
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
