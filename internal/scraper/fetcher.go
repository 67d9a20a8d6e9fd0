package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// downloadChunkSize is the unit documents are streamed and hashed in.
const downloadChunkSize = 32 * 1024

// Fetcher builds isolated portal sessions and runs every network operation
// under its retry policy. It holds no per-session state.
type Fetcher struct {
	retry     RetryPolicy
	userAgent string
	timeout   time.Duration
	rps       float64
	logger    *logger.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) FetcherOption {
	return func(f *Fetcher) {
		f.retry = p
	}
}

// WithUserAgent sets the User-Agent header sent by every session.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithRequestTimeout bounds a single HTTP exchange.
func WithRequestTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithRequestsPerSecond throttles each session. Zero disables throttling.
func WithRequestsPerSecond(rps float64) FetcherOption {
	return func(f *Fetcher) {
		f.rps = rps
	}
}

func NewFetcher(log *logger.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		retry:     DefaultRetryPolicy(log),
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		timeout:   30 * time.Second,
		rps:       2,
		logger:    log.With("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.retry.Logger == nil {
		f.retry.Logger = f.logger
	}
	return f
}

// RetryPolicy is the policy the fetcher runs network operations under.
func (f *Fetcher) RetryPolicy() RetryPolicy {
	return f.retry
}

// Session is one cookie jar with its own politeness limiter. The portal keeps
// the active query in server-side session state, so a session must never be
// shared between two entities.
type Session struct {
	client *resty.Client
}

// NewSession returns a fresh session with an empty cookie jar.
func (f *Fetcher) NewSession() (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", f.userAgent)
	client.SetTimeout(f.timeout)

	if f.rps > 0 {
		limiter := rate.NewLimiter(rate.Limit(f.rps), int(math.Max(1, math.Ceil(f.rps))))
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	return &Session{client: client}, nil
}

// Close releases the session's idle connections.
func (s *Session) Close() {
	s.client.GetClient().CloseIdleConnections()
}

// Request is one portal exchange. A non-nil Form is sent url-encoded.
type Request struct {
	Method string
	URL    string
	Form   url.Values
}

// Response is a fully read portal reply. URL is the final URL after
// redirects and is the base for resolving relative links.
type Response struct {
	URL        *url.URL
	StatusCode int
	Body       []byte
}

// Do performs a single exchange without retrying.
func (s *Session) Do(ctx context.Context, req Request) (*Response, error) {
	r := s.client.R().SetContext(ctx)
	if req.Form != nil {
		r.SetFormDataFromValues(req.Form)
	}

	res, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%s %s: unexpected status %s", req.Method, req.URL, res.Status())
	}

	finalURL := res.RawResponse.Request.URL
	return &Response{
		URL:        finalURL,
		StatusCode: res.StatusCode(),
		Body:       res.Body(),
	}, nil
}

// Fetch performs req and decodes the reply under the fetcher's retry policy.
// Decode errors are retried along with network errors.
func Fetch[T any](ctx context.Context, f *Fetcher, s *Session, req Request, decode func(*Response) (T, error)) (T, error) {
	return Retry(ctx, f.retry, req.Method+" "+req.URL, func(ctx context.Context) (T, error) {
		res, err := s.Do(ctx, req)
		if err != nil {
			var zero T
			return zero, err
		}
		return decode(res)
	})
}

// Download streams rawURL to dest and returns the SHA-256 of the raw bytes.
// The body goes to a temporary file that is renamed into place only once it
// has been read completely.
func (f *Fetcher) Download(ctx context.Context, s *Session, rawURL, dest string) (string, error) {
	return Retry(ctx, f.retry, "download "+rawURL, func(ctx context.Context) (string, error) {
		return s.download(ctx, rawURL, dest)
	})
}

func (s *Session) download(ctx context.Context, rawURL, dest string) (string, error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("download %s: bad status: %s", rawURL, res.Status())
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	hasher := sha256.New()
	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := tmp.Write(buf[:n]); err != nil {
				cleanup()
				return "", fmt.Errorf("failed to save file: %w", err)
			}
			hasher.Write(buf[:n])
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			cleanup()
			return "", fmt.Errorf("download %s: %w", rawURL, readErr)
		}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move download into place: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
