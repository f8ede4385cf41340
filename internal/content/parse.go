package content

import (
	"bytes"
	"errors"
	"math"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// DefaultOrder is the Order reported for lessons without an explicit order.
// Sorting uses Lesson.Unordered, so these still rank last when an author
// writes an order of DefaultOrder or more.
const DefaultOrder = math.MaxInt

// Lesson is one parsed unit of educational content.
type Lesson struct {
	Platform    Platform `json:"platform"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Order       int      `json:"order"`
	Unordered   bool     `json:"-"`
	Body        string   `json:"body,omitempty"`
	File        string   `json:"file"`
}

// Meta holds the decoded front-matter block of a lesson.
type Meta struct {
	Title       string `yaml:"title" toml:"title"`
	Description string `yaml:"description" toml:"description"`
	Platform    string `yaml:"platform" toml:"platform"`
	Order       *int   `yaml:"order" toml:"order"`
}

// YAML blocks are fenced by "---", TOML blocks by "+++".
var formats = []*frontmatter.Format{
	frontmatter.NewFormat("---", "---", yaml.Unmarshal),
	frontmatter.NewFormat("+++", "+++", toml.Unmarshal),
}

var utf8BOM = []byte("\uFEFF")

// ParseFrontMatter splits raw lesson text into its decoded metadata and body.
// It fails when the text does not open with a front-matter block or the block
// cannot be decoded into Meta.
func ParseFrontMatter(raw []byte) (Meta, string, error) {
	// some Windows editors prefix a byte order mark
	raw = bytes.TrimPrefix(raw, utf8BOM)
	var meta Meta
	body, err := frontmatter.MustParse(bytes.NewReader(raw), &meta, formats...)
	if err != nil {
		if errors.Is(err, frontmatter.ErrNotFound) {
			return Meta{}, "", &MalformedContentError{Reason: "missing front-matter delimiters"}
		}
		return Meta{}, "", &MalformedContentError{Reason: "invalid front-matter: " + err.Error()}
	}
	return meta, string(body), nil
}

// ParseLesson parses one lesson file belonging to platform p. The slug is
// derived from name; title and description are required and a declared
// platform must match p.
func ParseLesson(p Platform, name string, raw []byte) (Lesson, error) {
	malformed := func(reason string) error {
		return &MalformedContentError{Platform: p, File: name, Reason: reason}
	}

	slug := SlugFromFilename(name)
	if slug == "" {
		return Lesson{}, malformed("empty slug")
	}

	meta, body, err := ParseFrontMatter(raw)
	if err != nil {
		var mce *MalformedContentError
		if errors.As(err, &mce) {
			return Lesson{}, malformed(mce.Reason)
		}
		return Lesson{}, err
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		return Lesson{}, malformed("'title' is required")
	}
	description := strings.TrimSpace(meta.Description)
	if description == "" {
		return Lesson{}, malformed("'description' is required")
	}
	if declared := strings.TrimSpace(meta.Platform); declared != "" && !strings.EqualFold(declared, string(p)) {
		return Lesson{}, malformed("platform " + declared + " does not match directory " + string(p))
	}

	order := DefaultOrder
	if meta.Order != nil {
		order = *meta.Order
	}

	return Lesson{
		Platform:    p,
		Slug:        slug,
		Title:       title,
		Description: description,
		Order:       order,
		Unordered:   meta.Order == nil,
		Body:        body,
		File:        name,
	}, nil
}
