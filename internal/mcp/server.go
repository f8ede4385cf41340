// Package mcp exposes the lesson index to agents as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/content"
	"github.com/sgx-labs/mobilelessons/internal/guard"
	"github.com/sgx-labs/mobilelessons/internal/index"
	"github.com/sgx-labs/mobilelessons/internal/indexer"
	"github.com/sgx-labs/mobilelessons/internal/logging"
	"github.com/sgx-labs/mobilelessons/internal/metrics"
	"github.com/sgx-labs/mobilelessons/internal/store"
)

const reindexCooldown = 60 * time.Second

// Options configures a Server. ContentRoot is required for rebuild_index.
type Options struct {
	Version     string
	ContentRoot string
	BasePath    string
	DB          *store.DB
	Guard       *guard.Guard
	Metrics     *metrics.Metrics
	Logger      *logging.Logger
}

// Server holds the index the tools answer from.
type Server struct {
	mu sync.RWMutex
	ix *index.Index

	opts Options
	log  *logging.Logger

	reindexMu       sync.Mutex
	lastReindexTime time.Time
	now             func() time.Time
}

// New returns a Server answering from ix.
func New(ix *index.Index, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return &Server{
		ix:   ix,
		opts: opts,
		log:  log.Named("mcp"),
		now:  time.Now,
	}
}

func (s *Server) index() *index.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ix
}

// Serve runs the MCP server on stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "lessons",
		Version: s.opts.Version,
	}, nil)
	s.registerTools(server)

	s.log.Info("MCP server starting", "lessons", total(s.index()))
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools(server *mcp.Server) {
	// list_platforms
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_platforms",
		Description: "List the lesson platforms (iOS, Android, Flutter) with their lesson counts.\n\nReturns platform keys, display names, and counts in curriculum order.",
	}, instrument[emptyInput](s, "list_platforms", s.handleListPlatforms))

	// list_lessons
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_lessons",
		Description: "List every lesson for one platform in curriculum order. Use this to see what a learner will cover before reading individual lessons.\n\nArgs:\n  platform: ios, android, or flutter\n\nReturns slugs, titles, descriptions, and order values. Bodies are omitted.",
	}, instrument[platformInput](s, "list_lessons", s.handleListLessons))

	// get_lesson
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_lesson",
		Description: "Read one lesson in full, with links to the previous and next lesson. Use this after list_lessons or search_lessons returns a relevant slug.\n\nArgs:\n  platform: ios, android, or flutter\n  slug: Lesson slug (as returned by list_lessons)\n\nReturns the lesson markdown body and its navigation.",
	}, instrument[lessonInput](s, "get_lesson", s.handleGetLesson))

	// get_sidebar
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_sidebar",
		Description: "Get the sidebar navigation for one platform, or for all platforms when platform is empty.\n\nArgs:\n  platform: ios, android, flutter, or empty for all\n\nReturns labels and hrefs in lesson order.",
	}, instrument[sidebarInput](s, "get_sidebar", s.handleGetSidebar))

	// search_lessons
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_lessons",
		Description: "Search lesson titles and descriptions across all platforms.\n\nArgs:\n  query: Keywords (e.g. 'navigation stack', 'state management')\n  platform: Optional platform filter\n  limit: Number of results (default 10, max 50)\n\nReturns matching lessons ranked by the number of terms matched.",
	}, instrument[searchInput](s, "search_lessons", s.handleSearchLessons))

	// rebuild_index
	mcp.AddTool(server, &mcp.Tool{
		Name:        "rebuild_index",
		Description: "Reload lessons from disk and refresh the search index. Use this if lessons were added or edited and results look stale. Limited to once per minute.\n\nArgs:\n  force: Rewrite every platform in the search index regardless of changes (default false)\n\nReturns lesson counts and indexing statistics.",
	}, instrument[rebuildInput](s, "rebuild_index", s.handleRebuildIndex))
}

// instrument counts each call of a tool by outcome. A result flagged IsError
// counts as an error.
func instrument[In any](s *Server, tool string, h mcp.ToolHandlerFor[In, any]) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		res, out, err := h(ctx, req, in)
		result := "ok"
		if err != nil || (res != nil && res.IsError) {
			result = "error"
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.MCPToolCallsTotal.WithLabelValues(tool, result).Inc()
		}
		s.log.Debug("tool call", "tool", tool, "result", result)
		return res, out, err
	}
}

// Tool input types

type platformInput struct {
	Platform string `json:"platform" jsonschema:"ios, android, or flutter"`
}

type lessonInput struct {
	Platform string `json:"platform" jsonschema:"ios, android, or flutter"`
	Slug     string `json:"slug" jsonschema:"Lesson slug"`
}

type sidebarInput struct {
	Platform string `json:"platform,omitempty" jsonschema:"Platform, or empty for all platforms"`
}

type searchInput struct {
	Query    string `json:"query" jsonschema:"Search keywords"`
	Platform string `json:"platform,omitempty" jsonschema:"Optional platform filter"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Number of results (default 10, max 50)"`
}

type rebuildInput struct {
	Force bool `json:"force,omitempty" jsonschema:"Rewrite every platform in the search index"`
}

type emptyInput struct{}

// Tool handlers

type platformSummary struct {
	Platform content.Platform `json:"platform"`
	Title    string           `json:"title"`
	Lessons  int              `json:"lessons"`
}

func (s *Server) handleListPlatforms(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	ix := s.index()
	counts, _ := ix.Count()
	out := make([]platformSummary, 0, len(counts))
	for _, p := range ix.Platforms() {
		out = append(out, platformSummary{Platform: p, Title: p.Title(), Lessons: counts[p]})
	}
	return jsonResult(out), nil, nil
}

type lessonListing struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

func (s *Server) handleListLessons(ctx context.Context, req *mcp.CallToolRequest, input platformInput) (*mcp.CallToolResult, any, error) {
	p, err := content.ParsePlatform(input.Platform)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	lessons, err := s.index().Lessons(p)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	if len(lessons) == 0 {
		return textResult(fmt.Sprintf("No lessons for %s yet.", p.Title())), nil, nil
	}
	out := make([]lessonListing, len(lessons))
	for i, l := range lessons {
		out[i] = lessonListing{Slug: l.Slug, Title: l.Title, Description: l.Description, Order: l.Order}
	}
	return jsonResult(out), nil, nil
}

type navLink struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

type lessonDetail struct {
	Platform    content.Platform `json:"platform"`
	Slug        string           `json:"slug"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Href        string           `json:"href"`
	Previous    *navLink         `json:"previous,omitempty"`
	Next        *navLink         `json:"next,omitempty"`
	Body        string           `json:"body"`
}

func (s *Server) handleGetLesson(ctx context.Context, req *mcp.CallToolRequest, input lessonInput) (*mcp.CallToolResult, any, error) {
	p, err := content.ParsePlatform(input.Platform)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	ix := s.index()
	lesson, ok := ix.Lesson(p, input.Slug)
	if !ok {
		return errorResult(fmt.Sprintf("Lesson not found: %s/%s. Use list_lessons to see available slugs.", p, input.Slug)), nil, nil
	}

	lesson, flagged := s.opts.Guard.Sanitize(ctx, lesson)
	if flagged {
		s.log.Warn("lesson body withheld", "platform", p, "slug", lesson.Slug)
		if s.opts.Metrics != nil {
			s.opts.Metrics.GuardFlaggedTotal.WithLabelValues(string(p)).Inc()
		}
	}

	nav := ix.Navigation(p, lesson.Slug)
	detail := lessonDetail{
		Platform:    p,
		Slug:        lesson.Slug,
		Title:       lesson.Title,
		Description: lesson.Description,
		Href:        ix.LessonHref(p, lesson.Slug),
		Previous:    link(nav.Previous),
		Next:        link(nav.Next),
		Body:        lesson.Body,
	}
	return jsonResult(detail), nil, nil
}

func link(l *content.Lesson) *navLink {
	if l == nil {
		return nil
	}
	return &navLink{Slug: l.Slug, Title: l.Title}
}

func (s *Server) handleGetSidebar(ctx context.Context, req *mcp.CallToolRequest, input sidebarInput) (*mcp.CallToolResult, any, error) {
	ix := s.index()
	if input.Platform == "" {
		return jsonResult(ix.SidebarTree()), nil, nil
	}
	p, err := content.ParsePlatform(input.Platform)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	entries, err := ix.Sidebar(p)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return jsonResult(entries), nil, nil
}

func (s *Server) handleSearchLessons(ctx context.Context, req *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, any, error) {
	terms := index.ExtractSearchTerms(input.Query)
	if len(terms) == 0 {
		return errorResult("Query has no searchable terms. Try more specific keywords."), nil, nil
	}
	var platform content.Platform
	if input.Platform != "" {
		p, err := content.ParsePlatform(input.Platform)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		platform = p
	}
	limit := clampLimit(input.Limit)
	if s.opts.Metrics != nil {
		s.opts.Metrics.SearchQueriesTotal.WithLabelValues("mcp").Inc()
	}

	var results []index.SearchableLesson
	if s.opts.DB != nil {
		rows, err := s.opts.DB.KeywordSearch(terms, string(platform), limit)
		if err != nil {
			s.log.Error("keyword search failed", "query", input.Query, "error", err)
			return errorResult("Search failed."), nil, nil
		}
		for _, r := range rows {
			results = append(results, index.SearchableLesson{
				Title:       r.Title,
				Description: r.Description,
				Platform:    content.Platform(r.Platform),
				Slug:        r.Slug,
			})
		}
	} else {
		var items []index.SearchableLesson
		for _, it := range s.index().Searchable() {
			if platform == "" || it.Platform == platform {
				items = append(items, it)
			}
		}
		results = index.Match(items, input.Query, limit)
	}

	if len(results) == 0 {
		return textResult("No lessons matched. Try broader keywords or drop the platform filter."), nil, nil
	}
	return jsonResult(results), nil, nil
}

func (s *Server) handleRebuildIndex(ctx context.Context, req *mcp.CallToolRequest, input rebuildInput) (*mcp.CallToolResult, any, error) {
	s.reindexMu.Lock()
	defer s.reindexMu.Unlock()

	now := s.now()
	if since := now.Sub(s.lastReindexTime); since < reindexCooldown {
		remaining := int((reindexCooldown - since).Seconds())
		return errorResult(fmt.Sprintf("Rebuild cooldown active. Try again in %ds.", remaining)), nil, nil
	}
	if s.opts.ContentRoot == "" {
		return errorResult("No content root configured."), nil, nil
	}
	s.lastReindexTime = now

	start := time.Now()
	ix, err := index.Load(s.opts.ContentRoot, index.WithBasePath(s.opts.BasePath))
	if err != nil {
		s.opts.Metrics.ObserveIndex(nil, time.Since(start).Seconds(), err)
		s.log.Warn("rebuild failed, keeping previous index", "error", err)
		return errorResult(fmt.Sprintf("Rebuild failed, previous lessons still served:\n%v", err)), nil, nil
	}
	counts, lessonTotal := ix.Count()
	s.opts.Metrics.ObserveIndex(counts, time.Since(start).Seconds(), nil)

	s.mu.Lock()
	s.ix = ix
	s.mu.Unlock()

	result := map[string]any{"lessons": lessonTotal}
	if s.opts.DB != nil {
		stats, err := indexer.Reindex(s.opts.DB, ix, input.Force)
		if err != nil {
			return errorResult(fmt.Sprintf("Lessons reloaded but search index update failed: %v", err)), nil, nil
		}
		result["search_index"] = stats
	}
	s.log.Info("index rebuilt", "lessons", lessonTotal)
	return jsonResult(result), nil, nil
}

// Helpers

func total(ix *index.Index) int {
	_, n := ix.Count()
	return n
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	res := textResult(text)
	res.IsError = true
	return res
}

func jsonResult(v any) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return textResult(string(data))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return config.DefaultSearchLimit
	}
	if limit > config.MaxSearchResults {
		return config.MaxSearchResults
	}
	return limit
}
