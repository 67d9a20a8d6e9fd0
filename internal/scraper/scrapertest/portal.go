// Package scrapertest runs an in-process imitation of the judgement portal.
// Like the real one it keeps the active search in server-side session state
// keyed by cookie, and its "NEXT >>" links carry only an offset.
package scrapertest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	LandingPath   = "/"
	DirectoryPath = "/judges"
	SearchPath    = "/search"
	NextPath      = "/next"
	DocumentsPath = "/docs/"

	sessionCookie = "PHPSESSID"
	dateLayout    = "02/01/2006"
)

// Row is one listed case. Document is a path under DocumentsPath.
type Row struct {
	CaseNumber string
	Document   string
	Date       string
	Party      string
}

// Judge is a directory entry together with the result pages its search
// returns.
type Judge struct {
	ID    string
	Name  string
	Pages [][]Row
}

type Portal struct {
	*httptest.Server

	mu       sync.Mutex
	judges   []Judge
	docs     map[string][]byte
	sessions map[string]*url.Values
	failures map[string]int
	hits     map[string]int
	searches []url.Values
	nextSID  int
}

// New starts a portal serving judges. It is closed when the test ends.
func New(t testing.TB, judges ...Judge) *Portal {
	t.Helper()
	p := &Portal{
		judges:   judges,
		docs:     make(map[string][]byte),
		sessions: make(map[string]*url.Values),
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Close)
	return p
}

func (p *Portal) LandingURL() string   { return p.URL + LandingPath }
func (p *Portal) DirectoryURL() string { return p.URL + DirectoryPath }
func (p *Portal) SearchURL() string    { return p.URL + SearchPath }

// DocumentURL is the absolute URL a listing row links to.
func (p *Portal) DocumentURL(doc string) string {
	return p.URL + DocumentsPath + doc
}

// AddDocument serves body at DocumentsPath+doc.
func (p *Portal) AddDocument(doc string, body []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[doc] = body
}

// FailNext makes the next n requests to path answer 503.
func (p *Portal) FailNext(path string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[path] = n
}

// Hits reports how many requests reached path, failed ones included.
func (p *Portal) Hits(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[path]
}

// Searches returns the search forms posted so far.
func (p *Portal) Searches() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]url.Values, len(p.searches))
	copy(out, p.searches)
	return out
}

func (p *Portal) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if strings.HasPrefix(path, DocumentsPath) {
		path = DocumentsPath
	}

	p.mu.Lock()
	p.hits[r.URL.Path]++
	if p.failures[path] > 0 || p.failures[r.URL.Path] > 0 {
		if p.failures[r.URL.Path] > 0 {
			p.failures[r.URL.Path]--
		} else {
			p.failures[path]--
		}
		p.mu.Unlock()
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	p.mu.Unlock()

	switch path {
	case LandingPath:
		p.landing(w)
	case DirectoryPath:
		p.directory(w, r)
	case SearchPath:
		p.search(w, r)
	case NextPath:
		p.next(w, r)
	case DocumentsPath:
		p.document(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (p *Portal) landing(w http.ResponseWriter) {
	p.mu.Lock()
	p.nextSID++
	sid := "s" + strconv.Itoa(p.nextSID)
	p.sessions[sid] = nil
	p.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/"})
	fmt.Fprint(w, "<html><body><h1>Judgements</h1></body></html>")
}

func (p *Portal) session(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[c.Value]
	return c.Value, ok
}

func (p *Portal) directory(w http.ResponseWriter, r *http.Request) {
	if _, ok := p.session(r); !ok {
		http.Error(w, "session expired", http.StatusForbidden)
		return
	}

	var b strings.Builder
	b.WriteString(`<html><body><form method="post"><select name="ctype">`)
	b.WriteString(`<option value="">-- Select Judge --</option>`)
	for _, j := range p.judges {
		fmt.Fprintf(&b, `<option value="%s"> %s </option>`, html.EscapeString(j.ID), html.EscapeString(j.Name))
	}
	b.WriteString(`</select></form></body></html>`)
	fmt.Fprint(w, b.String())
}

func (p *Portal) search(w http.ResponseWriter, r *http.Request) {
	sid, ok := p.session(r)
	if !ok {
		http.Error(w, "session expired", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := r.PostForm
	if form.Get("Submit") != "Submit" {
		http.Error(w, "missing submit", http.StatusBadRequest)
		return
	}
	for _, key := range []string{"frdate", "todate"} {
		if _, err := time.Parse(dateLayout, form.Get(key)); err != nil {
			http.Error(w, "bad "+key, http.StatusBadRequest)
			return
		}
	}

	p.mu.Lock()
	p.sessions[sid] = &form
	p.searches = append(p.searches, form)
	p.mu.Unlock()

	p.render(w, form.Get("ctype"), 0)
}

func (p *Portal) next(w http.ResponseWriter, r *http.Request) {
	sid, ok := p.session(r)
	if !ok {
		http.Error(w, "session expired", http.StatusForbidden)
		return
	}
	p.mu.Lock()
	query := p.sessions[sid]
	p.mu.Unlock()
	if query == nil {
		http.Error(w, "no active search", http.StatusBadRequest)
		return
	}

	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil {
		http.Error(w, "bad offset", http.StatusBadRequest)
		return
	}
	p.render(w, query.Get("ctype"), offset)
}

func (p *Portal) render(w http.ResponseWriter, ctype string, offset int) {
	var pages [][]Row
	for _, j := range p.judges {
		if j.ID == ctype {
			pages = j.Pages
			break
		}
	}

	var b strings.Builder
	b.WriteString(`<html><body><table align="center">`)
	b.WriteString(`<tr><th>S.No.</th><th>Case No.</th><th>Date</th><th>Party</th></tr>`)
	b.WriteString(`<tr><td colspan="4">&nbsp;</td></tr>`)
	if offset < len(pages) {
		for i, row := range pages[offset] {
			fmt.Fprintf(&b,
				`<tr><td>%d</td><td><a href="%s%s">%s</a></td><td> %s </td><td>%s</td></tr>`,
				i+1,
				DocumentsPath, html.EscapeString(row.Document),
				html.EscapeString(row.CaseNumber),
				html.EscapeString(row.Date),
				html.EscapeString(row.Party),
			)
		}
	}
	b.WriteString(`</table>`)
	if offset+1 < len(pages) {
		fmt.Fprintf(&b, `<a href="next?offset=%d">NEXT &gt;&gt;</a>`, offset+1)
	}
	b.WriteString(`</body></html>`)
	fmt.Fprint(w, b.String())
}

func (p *Portal) document(w http.ResponseWriter, r *http.Request) {
	doc := strings.TrimPrefix(r.URL.Path, DocumentsPath)
	p.mu.Lock()
	body, ok := p.docs[doc]
	p.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(body)
}
