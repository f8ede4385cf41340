package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sgx-labs/mobilelessons/internal/content"
	"github.com/sgx-labs/mobilelessons/internal/index"
	"github.com/sgx-labs/mobilelessons/internal/indexer"
	"github.com/sgx-labs/mobilelessons/internal/metrics"
	"github.com/sgx-labs/mobilelessons/internal/store"
)

func lessonText(title, description string, order int) string {
	return fmt.Sprintf("---\ntitle: %q\ndescription: %q\norder: %d\n---\n# %s\n", title, description, order, title)
}

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	ix, err := index.Build(content.MemorySource{
		content.IOS: {
			"getting-started.md": lessonText("Getting Started", "Install Xcode", 1),
			"advanced-swift.md":  lessonText("Advanced Swift", "Generics and protocols", 4),
			"setup-dev.md":       lessonText("Setup Dev", "Simulators and signing", 2),
		},
		content.Android: {
			"kotlin-basics.md": lessonText("Kotlin Basics", "Syntax tour", 1),
		},
	}, index.WithBasePath("/learn"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Host = "localhost:4078"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHandleStatus_ReturnsJSON(t *testing.T) {
	s := New(testIndex(t), Options{Version: "vtest"})
	rr := get(t, s.Handler(), "/api/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var payload map[string]any
	decode(t, rr, &payload)
	if payload["version"] != "vtest" {
		t.Errorf("expected version vtest, got %#v", payload["version"])
	}
	if payload["lessons"] != float64(4) {
		t.Errorf("expected 4 lessons, got %#v", payload["lessons"])
	}
	if payload["search_mode"] != "memory" {
		t.Errorf("expected memory search without a db, got %#v", payload["search_mode"])
	}
}

func TestHandlePlatforms(t *testing.T) {
	s := New(testIndex(t), Options{})
	rr := get(t, s.Handler(), "/api/platforms")

	var got []platformInfo
	decode(t, rr, &got)
	if len(got) != 3 {
		t.Fatalf("expected 3 platforms, got %d", len(got))
	}
	if got[0].Platform != content.IOS || got[0].Title != "iOS" || got[0].Lessons != 3 || got[0].Href != "/learn/ios" {
		t.Errorf("ios = %+v", got[0])
	}
	if got[2].Platform != content.Flutter || got[2].Lessons != 0 {
		t.Errorf("flutter = %+v", got[2])
	}
}

func TestHandleLessons_Ordered(t *testing.T) {
	s := New(testIndex(t), Options{})
	rr := get(t, s.Handler(), "/api/platforms/ios/lessons")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var got []lessonSummary
	decode(t, rr, &got)
	var slugs []string
	for _, l := range got {
		slugs = append(slugs, l.Slug)
	}
	if strings.Join(slugs, ",") != "getting-started,setup-dev,advanced-swift" {
		t.Errorf("order = %v", slugs)
	}
	if got[1].Href != "/learn/ios/setup-dev" {
		t.Errorf("href = %q", got[1].Href)
	}
}

func TestHandleLesson_WithNavigation(t *testing.T) {
	s := New(testIndex(t), Options{})
	rr := get(t, s.Handler(), "/api/platforms/ios/lessons/setup-dev")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body)
	}
	var got struct {
		Lesson     content.Lesson   `json:"lesson"`
		Navigation index.Navigation `json:"navigation"`
	}
	decode(t, rr, &got)
	if got.Lesson.Title != "Setup Dev" || !strings.Contains(got.Lesson.Body, "# Setup Dev") {
		t.Errorf("lesson = %+v", got.Lesson)
	}
	if got.Navigation.Previous == nil || got.Navigation.Previous.Slug != "getting-started" {
		t.Errorf("previous = %+v", got.Navigation.Previous)
	}
	if got.Navigation.Next == nil || got.Navigation.Next.Slug != "advanced-swift" {
		t.Errorf("next = %+v", got.Navigation.Next)
	}
}

func TestHandleLesson_NotFound(t *testing.T) {
	s := New(testIndex(t), Options{})
	tests := []string{
		"/api/platforms/ios/lessons/does-not-exist",
		"/api/platforms/symbian/lessons/setup-dev",
		"/api/platforms/symbian/lessons",
		"/api/platforms/symbian/sidebar",
		"/api/unknown",
	}
	for _, path := range tests {
		rr := get(t, s.Handler(), path)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rr.Code)
			continue
		}
		var body map[string]string
		decode(t, rr, &body)
		if body["error"] == "" {
			t.Errorf("%s: expected JSON error body", path)
		}
	}
}

func TestHandleSidebar(t *testing.T) {
	s := New(testIndex(t), Options{})

	var entries []index.SidebarEntry
	decode(t, get(t, s.Handler(), "/api/platforms/android/sidebar"), &entries)
	if len(entries) != 1 || entries[0].Label != "Kotlin Basics" || entries[0].Href != "/learn/android/kotlin-basics" {
		t.Errorf("android sidebar = %+v", entries)
	}

	var tree []index.SidebarEntry
	decode(t, get(t, s.Handler(), "/api/sidebar"), &tree)
	if len(tree) != 3 || len(tree[0].Children) != 3 {
		t.Errorf("tree = %+v", tree)
	}
}

func TestHandleSearch_InMemory(t *testing.T) {
	m := metrics.New("test", "go")
	s := New(testIndex(t), Options{Metrics: m})

	rr := get(t, s.Handler(), "/api/search?q=swift+generics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var got struct {
		Results []searchHit `json:"results"`
	}
	decode(t, rr, &got)
	if len(got.Results) != 1 || got.Results[0].Slug != "advanced-swift" || got.Results[0].Href != "/learn/ios/advanced-swift" {
		t.Errorf("results = %+v", got.Results)
	}
	if n := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("web")); n != 1 {
		t.Errorf("search counter = %v", n)
	}
}

func TestHandleSearch_PlatformFilterAndErrors(t *testing.T) {
	s := New(testIndex(t), Options{})

	var got struct {
		Results []searchHit `json:"results"`
	}
	decode(t, get(t, s.Handler(), "/api/search?q=syntax+install&platform=android"), &got)
	if len(got.Results) != 1 || got.Results[0].Platform != content.Android {
		t.Errorf("filtered results = %+v", got.Results)
	}

	if rr := get(t, s.Handler(), "/api/search"); rr.Code != http.StatusBadRequest {
		t.Errorf("missing q: expected 400, got %d", rr.Code)
	}
	if rr := get(t, s.Handler(), "/api/search?q=swift&platform=symbian"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad platform: expected 400, got %d", rr.Code)
	}
}

func TestHandleSearch_SQLite(t *testing.T) {
	t.Setenv("LESSONS_DATA_DIR", t.TempDir())
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	ix := testIndex(t)
	if _, err := indexer.Reindex(db, ix, false); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	s := New(ix, Options{DB: db})

	var got struct {
		Results []searchHit `json:"results"`
	}
	decode(t, get(t, s.Handler(), "/api/search?q=simulators"), &got)
	if len(got.Results) != 1 || got.Results[0].Slug != "setup-dev" {
		t.Errorf("results = %+v", got.Results)
	}

	var status map[string]any
	decode(t, get(t, s.Handler(), "/api/status"), &status)
	if status["search_mode"] != "sqlite" {
		t.Errorf("search_mode = %v", status["search_mode"])
	}
}

func TestSetIndex_SwapsServedIndex(t *testing.T) {
	s := New(testIndex(t), Options{})
	h := s.Handler()

	next, err := index.Build(content.MemorySource{
		content.Flutter: {"widgets.md": lessonText("Widgets", "Everything is a widget", 1)},
	})
	if err != nil {
		t.Fatal(err)
	}
	s.SetIndex(next)

	if rr := get(t, h, "/api/platforms/flutter/lessons/widgets"); rr.Code != http.StatusOK {
		t.Errorf("expected new lesson after swap, got %d", rr.Code)
	}
	if rr := get(t, h, "/api/platforms/ios/lessons/setup-dev"); rr.Code != http.StatusNotFound {
		t.Errorf("expected old lesson gone after swap, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New("test", "go")
	s := New(testIndex(t), Options{Metrics: m})
	h := s.Handler()

	get(t, h, "/api/status")
	rr := get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `lessons_http_requests_total{method="GET",route="/api/status",status="200"} 1`) {
		t.Errorf("request counter missing from metrics output:\n%s", body)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s := New(testIndex(t), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_RejectsNonLoopback(t *testing.T) {
	s := New(testIndex(t), Options{})
	if err := s.Serve(context.Background(), "0.0.0.0:4078"); err == nil {
		t.Fatal("expected error for non-loopback address")
	}
}
