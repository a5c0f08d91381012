package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	appLog "w2wcal/internal/log"
)

// DefaultMaxBytes bounds a single calendar payload. The parser makes several
// full passes over its input, so the loader refuses anything larger.
const DefaultMaxBytes = 10 << 20

// StdinPath selects standard input as a file source.
const StdinPath = "-"

// ErrTooLarge is returned when a payload exceeds the fetcher's limit.
var ErrTooLarge = errors.New("calendar payload exceeds size limit")

// Source is one calendar export: a local file (or "-" for stdin) or a
// feed URL. File wins when both are set.
type Source struct {
	ID   string
	URL  string
	File string
}

// String identifies the source in logs without leaking feed tokens.
func (s Source) String() string {
	if s.File != "" {
		return s.File
	}
	return redactURL(s.URL)
}

// FetchResult contains the outcome of loading a single source.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // true if a cached body was reused (304 or network failure)
}

// cacheEntry holds HTTP cache metadata for a single feed URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher loads calendar payloads. HTTP feeds are cached on disk and
// revalidated with ETag / Last-Modified.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	maxBytes int64
	stdin    io.Reader
}

// NewFetcher creates a Fetcher that caches feeds under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
		maxBytes: DefaultMaxBytes,
		stdin:    os.Stdin,
	}
}

// WithMaxBytes overrides the payload size limit.
func (f *Fetcher) WithMaxBytes(n int64) *Fetcher {
	f.maxBytes = n
	return f
}

// WithStdin replaces the reader used for StdinPath.
func (f *Fetcher) WithStdin(r io.Reader) *Fetcher {
	f.stdin = r
	return f
}

// FetchAll loads every source. Failures are logged, aggregated into the
// returned error, and do not stop the remaining sources.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, error) {
	results := make([]FetchResult, 0, len(sources))
	var errs *multierror.Error

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			appLog.Error("calendar load failed", err, "id", src.ID, "source", src)
			errs = multierror.Append(errs, errors.Wrapf(err, "source %q", src.ID))
			continue
		}
		results = append(results, res)
	}

	return results, errs.ErrorOrNil()
}

// FetchOne loads a single source.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	switch {
	case src.File == StdinPath:
		body, err := f.readLimited(f.stdin)
		if err != nil {
			return FetchResult{}, errors.Wrap(err, "reading stdin")
		}
		return FetchResult{Source: src, Body: body}, nil
	case src.File != "":
		return f.loadFile(src)
	case src.URL != "":
		return f.fetchURL(ctx, src)
	default:
		return FetchResult{}, errors.New("source has neither file nor URL")
	}
}

func (f *Fetcher) loadFile(src Source) (FetchResult, error) {
	fh, err := os.Open(src.File)
	if err != nil {
		return FetchResult{}, errors.Wrapf(err, "opening %s", src.File)
	}
	defer fh.Close()

	body, err := f.readLimited(fh)
	if err != nil {
		return FetchResult{}, errors.Wrapf(err, "reading %s", src.File)
	}
	appLog.Debug("calendar file loaded", "id", src.ID, "file", src.File, "bytes", len(body))
	return FetchResult{Source: src, Body: body}, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, src Source) (FetchResult, error) {
	cachePath := f.cachePathForURL(src.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, errors.Wrap(err, "creating cache dir")
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)
	cached := FetchResult{Source: src, Body: cachedBody, FromCache: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, errors.Wrap(err, "building request")
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("calendar fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("calendar fetch network error, using cached body", err, "id", src.ID, "url", redactURL(src.URL))
			return cached, nil
		}
		return FetchResult{}, errors.Wrap(err, "fetching feed")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := f.readLimited(resp.Body)
		if err != nil {
			return FetchResult{}, errors.Wrap(err, "reading feed body")
		}

		newMeta := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("calendar cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
		}

		appLog.Info("calendar fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("calendar not modified; using cache", "id", src.ID, "url", redactURL(src.URL))
		return cached, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("calendar fetch non-OK, using cached body", errors.New(resp.Status), "id", src.ID, "url", redactURL(src.URL))
			return cached, nil
		}
		return FetchResult{}, errors.Errorf("unexpected status %s", resp.Status)
	}
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; W2W feed URLs embed access tokens.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
