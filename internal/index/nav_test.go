package index

import (
	"testing"

	"github.com/sgx-labs/mobilelessons/internal/content"
	"pgregory.net/rapid"
)

func TestNavigation_Middle(t *testing.T) {
	ix := mustBuild(t, testSource())
	nav := ix.Navigation(content.IOS, "setup-dev")
	if nav.Previous == nil || nav.Previous.Slug != "getting-started" {
		t.Errorf("Previous = %+v, want getting-started", nav.Previous)
	}
	if nav.Next == nil || nav.Next.Slug != "advanced-swift" {
		t.Errorf("Next = %+v, want advanced-swift", nav.Next)
	}
}

func TestNavigation_Boundaries(t *testing.T) {
	ix := mustBuild(t, testSource())

	first := ix.Navigation(content.IOS, "getting-started")
	if first.Previous != nil {
		t.Errorf("first lesson has Previous = %+v", first.Previous)
	}
	if first.Next == nil {
		t.Error("first lesson should have Next")
	}

	last := ix.Navigation(content.IOS, "advanced-swift")
	if last.Next != nil {
		t.Errorf("last lesson has Next = %+v", last.Next)
	}

	single := ix.Navigation(content.Android, "kotlin-basics")
	if single.Previous != nil || single.Next != nil {
		t.Errorf("single lesson should be isolated, got %+v", single)
	}
}

func TestNavigation_UnknownSlugIsIsolated(t *testing.T) {
	ix := mustBuild(t, testSource())
	nav := ix.Navigation(content.IOS, "missing")
	if nav.Previous != nil || nav.Next != nil {
		t.Errorf("expected empty navigation, got %+v", nav)
	}
	if nav := ix.Navigation(content.Platform("web"), "setup-dev"); nav.Previous != nil || nav.Next != nil {
		t.Errorf("expected empty navigation for unknown platform, got %+v", nav)
	}
}

func TestNavigationFor_MatchesPosition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 10).Draw(t, "n")
		lessons := make([]content.Lesson, n)
		for i := range lessons {
			lessons[i] = content.Lesson{Slug: string(rune('a' + i))}
		}
		for i, l := range lessons {
			nav := NavigationFor(lessons, l.Slug)
			if (i == 0) != (nav.Previous == nil) {
				t.Fatalf("index %d: Previous = %+v", i, nav.Previous)
			}
			if (i == n-1) != (nav.Next == nil) {
				t.Fatalf("index %d: Next = %+v", i, nav.Next)
			}
			if nav.Previous != nil && nav.Previous.Slug != lessons[i-1].Slug {
				t.Fatalf("index %d: wrong Previous %q", i, nav.Previous.Slug)
			}
			if nav.Next != nil && nav.Next.Slug != lessons[i+1].Slug {
				t.Fatalf("index %d: wrong Next %q", i, nav.Next.Slug)
			}
		}
	})
}
