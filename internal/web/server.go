// Package web provides a local read-only JSON API over the lesson index.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/content"
	"github.com/sgx-labs/mobilelessons/internal/index"
	"github.com/sgx-labs/mobilelessons/internal/logging"
	"github.com/sgx-labs/mobilelessons/internal/metrics"
	"github.com/sgx-labs/mobilelessons/internal/store"
)

// Options carries the optional collaborators of a Server.
type Options struct {
	Version string
	// DB, when set, backs /api/search with the SQLite keyword index.
	// Otherwise search runs in memory over the current index.
	DB      *store.DB
	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

// Server serves the lesson API. The index can be swapped while serving.
type Server struct {
	ix      atomic.Pointer[index.Index]
	db      *store.DB
	metrics *metrics.Metrics
	log     *logging.Logger
	version string
	started time.Time
}

// New returns a Server over ix.
func New(ix *index.Index, opts Options) *Server {
	s := &Server{
		db:      opts.DB,
		metrics: opts.Metrics,
		log:     opts.Logger,
		version: opts.Version,
		started: time.Now(),
	}
	if s.log == nil {
		s.log = logging.NewNop()
	}
	s.log = s.log.Named("web")
	s.ix.Store(ix)
	return s
}

// SetIndex publishes a rebuilt index to subsequent requests.
func (s *Server) SetIndex(ix *index.Index) {
	s.ix.Store(ix)
}

// Index returns the index currently being served.
func (s *Server) Index() *index.Index {
	return s.ix.Load()
}

// Handler returns the full middleware-wrapped route tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "GET /api/status", s.handleStatus)
	s.handle(mux, "GET /api/platforms", s.handlePlatforms)
	s.handle(mux, "GET /api/platforms/{platform}/lessons", s.handleLessons)
	s.handle(mux, "GET /api/platforms/{platform}/lessons/{slug}", s.handleLesson)
	s.handle(mux, "GET /api/platforms/{platform}/sidebar", s.handleSidebar)
	s.handle(mux, "GET /api/sidebar", s.handleSidebarTree)
	s.handle(mux, "GET /api/search", s.handleSearch)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return localhostOnly(securityHeaders(mux))
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	if err := CheckLoopback(addr); err != nil {
		return err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("lessons API listening", "url", "http://"+listener.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

// CheckLoopback rejects listen addresses that are not on a loopback
// interface.
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("refusing to listen on %q: address must be loopback", addr)
}

// --- Middleware ---

func localhostOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if idx := strings.LastIndex(host, ":"); idx >= 0 {
			host = host[:idx]
		}
		host = strings.Trim(host, "[]") // strip IPv6 brackets

		if host == "localhost" {
			next.ServeHTTP(w, r)
			return
		}
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// handle registers h under pattern, counting and timing each request.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	route := pattern[strings.Index(pattern, " ")+1:]
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
			s.metrics.HTTPRequestDurationSeconds.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		}
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.code, "took", elapsed)
	})
}

// --- Handlers ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ix := s.Index()
	counts, total := ix.Count()
	byPlatform := make(map[string]int, len(counts))
	for p, n := range counts {
		byPlatform[string(p)] = n
	}

	searchMode := "memory"
	indexAge := ""
	if s.db != nil {
		searchMode = "sqlite"
		if age := s.db.IndexAge(); age > 0 {
			indexAge = age.Round(time.Second).String()
		}
	}

	writeJSON(w, map[string]any{
		"version":     s.version,
		"lessons":     total,
		"by_platform": byPlatform,
		"base_path":   ix.BasePath(),
		"search_mode": searchMode,
		"index_age":   indexAge,
		"uptime":      time.Since(s.started).Round(time.Second).String(),
	})
}

type platformInfo struct {
	Platform content.Platform `json:"platform"`
	Title    string           `json:"title"`
	Lessons  int              `json:"lessons"`
	Href     string           `json:"href"`
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	ix := s.Index()
	counts, _ := ix.Count()
	out := make([]platformInfo, 0, len(counts))
	for _, p := range ix.Platforms() {
		out = append(out, platformInfo{
			Platform: p,
			Title:    p.Title(),
			Lessons:  counts[p],
			Href:     ix.PlatformHref(p),
		})
	}
	writeJSON(w, out)
}

// lessonSummary is a lesson without its body, for list responses.
type lessonSummary struct {
	Platform    content.Platform `json:"platform"`
	Slug        string           `json:"slug"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Order       int              `json:"order"`
	Href        string           `json:"href"`
}

func (s *Server) handleLessons(w http.ResponseWriter, r *http.Request) {
	p, ok := platformParam(w, r)
	if !ok {
		return
	}
	ix := s.Index()
	lessons, _ := ix.Lessons(p)
	out := make([]lessonSummary, len(lessons))
	for i, l := range lessons {
		out[i] = lessonSummary{
			Platform:    l.Platform,
			Slug:        l.Slug,
			Title:       l.Title,
			Description: l.Description,
			Order:       l.Order,
			Href:        ix.LessonHref(p, l.Slug),
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleLesson(w http.ResponseWriter, r *http.Request) {
	p, ok := platformParam(w, r)
	if !ok {
		return
	}
	slug := r.PathValue("slug")
	ix := s.Index()
	lesson, found := ix.Lesson(p, slug)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("lesson %s/%s not found", p, slug))
		return
	}
	writeJSON(w, map[string]any{
		"lesson":     lesson,
		"href":       ix.LessonHref(p, slug),
		"navigation": ix.Navigation(p, slug),
	})
}

func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	p, ok := platformParam(w, r)
	if !ok {
		return
	}
	entries, err := s.Index().Sidebar(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleSidebarTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Index().SidebarTree())
}

type searchHit struct {
	index.SearchableLesson
	Href string `json:"href"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	var platform content.Platform
	if v := r.URL.Query().Get("platform"); v != "" {
		p, err := content.ParsePlatform(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		platform = p
	}
	limit := config.DefaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= config.MaxSearchResults {
			limit = n
		}
	}
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues("web").Inc()
	}

	ix := s.Index()
	var found []index.SearchableLesson
	if s.db != nil {
		results, err := s.db.KeywordSearch(index.ExtractSearchTerms(q), string(platform), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "search failed")
			s.log.Error("keyword search failed", "query", q, "error", err)
			return
		}
		for _, res := range results {
			found = append(found, index.SearchableLesson{
				Title:       res.Title,
				Description: res.Description,
				Platform:    content.Platform(res.Platform),
				Slug:        res.Slug,
			})
		}
	} else {
		items := ix.Searchable()
		if platform != "" {
			filtered := items[:0]
			for _, it := range items {
				if it.Platform == platform {
					filtered = append(filtered, it)
				}
			}
			items = filtered
		}
		found = index.Match(items, q, limit)
	}

	hits := make([]searchHit, len(found))
	for i, f := range found {
		hits[i] = searchHit{SearchableLesson: f, Href: ix.LessonHref(f.Platform, f.Slug)}
	}
	writeJSON(w, map[string]any{
		"query":   q,
		"results": hits,
	})
}

// platformParam resolves the {platform} path segment, writing a 404 when it
// is not a known platform.
func platformParam(w http.ResponseWriter, r *http.Request) (content.Platform, bool) {
	p, err := content.ParsePlatform(r.PathValue("platform"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return p, true
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
