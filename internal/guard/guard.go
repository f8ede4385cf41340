// Package guard screens lesson bodies for prompt injection before they are
// handed to an agent, and records what it withheld.
package guard

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/mdombrov-33/go-promptguard/detector"

	"github.com/sgx-labs/mobilelessons/internal/content"
	"github.com/sgx-labs/mobilelessons/internal/index"
)

// FilteredPlaceholder replaces a lesson body that failed screening.
const FilteredPlaceholder = "[content filtered for security]"

// maxChunk matches the detector's input cap; longer bodies are scanned in
// line-aligned windows.
const maxChunk = 1000

// Phrases that never belong in a lesson. Checked in addition to the detector.
var injectionPatterns = []string{
	"ignore previous instructions",
	"ignore all previous",
	"disregard previous",
	"disregard all previous",
	"system prompt",
	"<system>",
	"</system>",
}

// Guard wraps a go-promptguard multi-detector. A disabled Guard passes
// everything through.
type Guard struct {
	enabled bool
	unsafe  func(ctx context.Context, text string) bool
}

// New builds a Guard. threshold is the detector risk score above which text
// is flagged.
func New(enabled bool, threshold float64) *Guard {
	g := &Guard{enabled: enabled}
	if enabled {
		d := detector.New(
			detector.WithThreshold(threshold),
			detector.WithAllDetectors(),
			detector.WithMaxInputLength(maxChunk),
			// no LLM judge: pattern and statistical analysis only
		)
		g.unsafe = func(ctx context.Context, text string) bool {
			return !d.Detect(ctx, text).Safe
		}
	}
	return g
}

// Enabled reports whether screening is active.
func (g *Guard) Enabled() bool {
	return g != nil && g.enabled
}

// Flagged reports whether text looks like a prompt injection attempt.
func (g *Guard) Flagged(ctx context.Context, text string) bool {
	if !g.Enabled() || strings.TrimSpace(text) == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range injectionPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, chunk := range chunks(text, maxChunk) {
		if g.unsafe(ctx, chunk) {
			return true
		}
	}
	return false
}

// Sanitize returns l with its body replaced by FilteredPlaceholder when the
// body is flagged. The boolean reports whether that happened.
func (g *Guard) Sanitize(ctx context.Context, l content.Lesson) (content.Lesson, bool) {
	if !g.Flagged(ctx, l.Body) {
		return l, false
	}
	l.Body = FilteredPlaceholder
	return l, true
}

// Finding is one flagged lesson.
type Finding struct {
	Platform content.Platform `json:"platform"`
	Slug     string           `json:"slug"`
	File     string           `json:"file"`
}

// Scan screens every lesson body in ix.
func (g *Guard) Scan(ctx context.Context, ix *index.Index) (scanned int, findings []Finding) {
	for _, p := range ix.Platforms() {
		lessons, _ := ix.Lessons(p)
		for _, l := range lessons {
			if ctx.Err() != nil {
				return scanned, findings
			}
			scanned++
			if g.Flagged(ctx, l.Body) {
				findings = append(findings, Finding{Platform: p, Slug: l.Slug, File: l.File})
			}
		}
	}
	return scanned, findings
}

// chunks splits text into pieces of at most limit bytes, breaking on line
// boundaries where possible and never inside a UTF-8 sequence.
func chunks(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			out = append(out, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line) > limit {
			flush()
		}
		cur.WriteString(line)
	}
	flush()
	return out
}
