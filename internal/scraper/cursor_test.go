package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JustJay7/courtlight/internal/scraper/scrapertest"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/stretchr/testify/require"
)

var (
	testFrom = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	testTo   = time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC)
)

func pagedJudge(id, name string, pages, perPage int) scrapertest.Judge {
	j := scrapertest.Judge{ID: id, Name: name}
	n := 0
	for p := 0; p < pages; p++ {
		var rows []scrapertest.Row
		for r := 0; r < perPage; r++ {
			n++
			rows = append(rows, scrapertest.Row{
				CaseNumber: fmt.Sprintf("W.P.(C) %s-%d/2020", id, n),
				Document:   fmt.Sprintf("%s-%d.pdf", id, n),
				Date:       fmt.Sprintf("%02d/03/2020", n%28+1),
				Party:      fmt.Sprintf("PARTY %d", n),
			})
		}
		j.Pages = append(j.Pages, rows)
	}
	return j
}

func TestSessionCursorPagesInOrder(t *testing.T) {
	portal := scrapertest.New(t, pagedJudge("7", "JUSTICE SEVEN", 3, 2))
	c := NewSessionCursor(newTestFetcher(time.Second), portalOf(portal), Entity{Name: "JUSTICE SEVEN", ID: "7"}, testFrom, testTo, logger.NewNop())
	defer c.Close()
	ctx := context.Background()

	require.Equal(t, cursorInit, c.state)

	var cases []string
	for {
		page, err := c.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		for _, r := range page.Records {
			cases = append(cases, r.CaseNumber)
		}
	}

	require.Equal(t, cursorDone, c.state)
	require.Equal(t, 3, c.Pages())
	require.Equal(t, []string{
		"W.P.(C) 7-1/2020", "W.P.(C) 7-2/2020",
		"W.P.(C) 7-3/2020", "W.P.(C) 7-4/2020",
		"W.P.(C) 7-5/2020", "W.P.(C) 7-6/2020",
	}, cases)

	searches := portal.Searches()
	require.Len(t, searches, 1)
	require.Equal(t, "7", searches[0].Get("ctype"))
	require.Equal(t, "01/01/2020", searches[0].Get("frdate"))
	require.Equal(t, "31/12/2020", searches[0].Get("todate"))
	require.Equal(t, "Submit", searches[0].Get("Submit"))

	_, err := c.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestSessionCursorsDoNotShareState(t *testing.T) {
	portal := scrapertest.New(t,
		pagedJudge("1", "JUSTICE ONE", 2, 1),
		pagedJudge("2", "JUSTICE TWO", 2, 1),
	)
	f := newTestFetcher(time.Second)
	ctx := context.Background()

	one := NewSessionCursor(f, portalOf(portal), Entity{Name: "JUSTICE ONE", ID: "1"}, testFrom, testTo, logger.NewNop())
	two := NewSessionCursor(f, portalOf(portal), Entity{Name: "JUSTICE TWO", ID: "2"}, testFrom, testTo, logger.NewNop())
	defer one.Close()
	defer two.Close()

	// Interleave so that both searches are active before either pages.
	p1, err := one.Next(ctx)
	require.NoError(t, err)
	p2, err := two.Next(ctx)
	require.NoError(t, err)
	q1, err := one.Next(ctx)
	require.NoError(t, err)
	q2, err := two.Next(ctx)
	require.NoError(t, err)

	require.Equal(t, "W.P.(C) 1-1/2020", p1.Records[0].CaseNumber)
	require.Equal(t, "W.P.(C) 1-2/2020", q1.Records[0].CaseNumber)
	require.Equal(t, "W.P.(C) 2-1/2020", p2.Records[0].CaseNumber)
	require.Equal(t, "W.P.(C) 2-2/2020", q2.Records[0].CaseNumber)
	require.Equal(t, "JUSTICE TWO", q2.Records[0].JudgeName)
}

func TestSessionCursorFailureIsSticky(t *testing.T) {
	portal := scrapertest.New(t, pagedJudge("1", "JUSTICE ONE", 1, 1))
	portal.FailNext(scrapertest.SearchPath, 1_000)

	c := NewSessionCursor(newTestFetcher(30*time.Millisecond), portalOf(portal), Entity{Name: "JUSTICE ONE", ID: "1"}, testFrom, testTo, logger.NewNop())
	defer c.Close()

	_, err := c.Next(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "JUSTICE ONE")

	hits := portal.Hits(scrapertest.SearchPath)
	_, again := c.Next(context.Background())
	require.Equal(t, err, again)
	require.Equal(t, hits, portal.Hits(scrapertest.SearchPath))
}

func TestSessionCursorDetectsPaginationLoop(t *testing.T) {
	page := `<table align="center"></table><a href="/next?offset=1">NEXT &gt;&gt;</a>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	c := NewSessionCursor(newTestFetcher(time.Second), Portal{
		LandingURL:   srv.URL + "/",
		DirectoryURL: srv.URL + "/judges",
		SearchURL:    srv.URL + "/search",
	}, Entity{Name: "J", ID: "1"}, testFrom, testTo, logger.NewNop())
	defer c.Close()
	ctx := context.Background()

	_, err := c.Next(ctx)
	require.NoError(t, err)
	_, err = c.Next(ctx)
	require.ErrorContains(t, err, "pagination loop")
}
