package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyCalendar = "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nSUMMARY:x\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func TestFetchURLUsesCacheOnNotModified(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(tinyCalendar))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "feed", URL: srv.URL + "/feed.ics?token=secret"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, tinyCalendar, string(first.Body))

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, tinyCalendar, string(second.Body))
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestFetchURLFallsBackToCacheOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(tinyCalendar))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "feed", URL: srv.URL}

	_, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	_, err = NewFetcher(t.TempDir()).FetchOne(context.Background(), src)
	assert.Error(t, err)
}

func TestFetchFileAndStdin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w2w.ics")
	require.NoError(t, os.WriteFile(path, []byte(tinyCalendar), 0o600))

	f := NewFetcher(dir).WithStdin(strings.NewReader("from stdin"))

	res, err := f.FetchOne(context.Background(), Source{ID: "file", File: path, URL: "http://ignored.invalid"})
	require.NoError(t, err)
	assert.Equal(t, tinyCalendar, string(res.Body))

	res, err = f.FetchOne(context.Background(), Source{ID: "stdin", File: StdinPath})
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(res.Body))

	_, err = f.FetchOne(context.Background(), Source{ID: "empty"})
	assert.Error(t, err)
}

func TestFetchEnforcesSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.ics")
	require.NoError(t, os.WriteFile(path, []byte(tinyCalendar), 0o600))

	_, err := NewFetcher(t.TempDir()).WithMaxBytes(10).FetchOne(context.Background(), Source{ID: "big", File: path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestFetchAllAggregatesFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.ics")
	require.NoError(t, os.WriteFile(good, []byte(tinyCalendar), 0o600))

	results, err := NewFetcher(dir).FetchAll(context.Background(), []Source{
		{ID: "good", File: good},
		{ID: "missing", File: filepath.Join(dir, "nope.ics")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `source "missing"`)
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Source.ID)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://www.whentowork.com/...(redacted)", redactURL("https://www.whentowork.com/cgi-bin/w2wJ.dll/ical?SID=abc"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
	assert.Equal(t, "/tmp/a.ics", Source{File: "/tmp/a.ics"}.String())
}
