package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"w2wcal/internal/config"
	"w2wcal/internal/export"
	"w2wcal/internal/ics"
	appLog "w2wcal/internal/log"
)

const (
	uploadField    = "icsfile"
	uploadID       = "upload"
	eventsCacheTTL = 30 * time.Second
)

// Loader fetches the configured sources. *ics.Fetcher satisfies it.
type Loader interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, error)
}

// Server accepts calendar uploads and serves the merged events of the
// configured sources.
type Server struct {
	cfg       *config.Config
	parser    *ics.Parser
	loader    Loader
	maxUpload int64
	mux       *http.ServeMux

	// In-memory cache for /api/events so page reloads do not refetch every
	// source.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
}

type eventsCache struct {
	doc       export.Document
	updatedAt time.Time
}

// embeddedStatic holds the upload page.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server. Uploads larger than maxUpload bytes
// are rejected.
func NewServer(cfg *config.Config, parser *ics.Parser, loader Loader, maxUpload int64) *Server {
	if maxUpload <= 0 {
		maxUpload = ics.DefaultMaxBytes
	}
	s := &Server{
		cfg:       cfg,
		parser:    parser,
		loader:    loader,
		maxUpload: maxUpload,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "listening on %s", s.cfg.Listen)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="w2wcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/upload", s.handleUpload)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleUpload parses a multipart "icsfile" upload, rewrites the export file
// with its events and returns them.
//
// POST /upload
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if int64(len(body)) > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	events, info := s.parser.ParseDocument(body, true)
	cal := export.Calendar{ID: uploadID, Info: info, Events: export.Summarize(events)}
	appLog.Info("upload parsed", "filename", header.Filename, "bytes", len(body), "events", len(events))

	doc := export.Document{GeneratedAt: time.Now().UTC(), Calendars: []export.Calendar{cal}}
	if err := export.WriteFile(s.cfg.Output, doc); err != nil {
		// The caller still gets the parsed events.
		appLog.Error("upload export failed", err, "path", s.cfg.Output)
	}

	writeJSON(w, http.StatusOK, cal)
}

// handleEvents returns the summarized events of every configured source.
//
// GET /api/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec != nil && now.Sub(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.doc)
		return
	}

	doc := export.Document{GeneratedAt: now.UTC(), Calendars: []export.Calendar{}}
	if len(s.cfg.Sources) == 0 {
		writeJSON(w, http.StatusOK, doc)
		return
	}

	sources := make([]ics.Source, 0, len(s.cfg.Sources))
	for _, src := range s.cfg.Sources {
		sources = append(sources, src.Source())
	}

	results, err := s.loader.FetchAll(r.Context(), sources)
	if err != nil {
		appLog.Error("api events: one or more sources failed", err)
	}
	if len(results) == 0 {
		writeError(w, http.StatusBadGateway, "no calendars could be loaded")
		return
	}

	for _, res := range results {
		events, info := s.parser.ParseDocument(res.Body, true)
		doc.Calendars = append(doc.Calendars, export.Calendar{
			ID:     res.Source.ID,
			Info:   info,
			Events: export.Summarize(events),
		})
	}

	s.eventsMu.Lock()
	s.eventsCache = &eventsCache{doc: doc, updatedAt: time.Now()}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, doc)
}

// staticFileServer serves the embedded upload page. /api/* never falls
// through to it.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
