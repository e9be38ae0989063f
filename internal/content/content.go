// Package content serves the static pages (notice, FAQ, terms) from local
// markdown files with YAML front matter. Pages are rendered once and cached
// with a short TTL so edits show up without a restart.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

// ErrNotFound means no markdown file exists for the slug.
var ErrNotFound = errors.New("content: page not found")

const defaultCacheTTL = 5 * time.Minute

// Page is one rendered static page.
type Page struct {
	Slug          string
	Title         string
	Summary       string
	Body          template.HTML
	EffectiveDate string
	UpdatedAt     string
	Version       string
}

type frontMatter struct {
	Title         string `yaml:"title"`
	Summary       string `yaml:"summary"`
	EffectiveDate string `yaml:"effective_date"`
	UpdatedAt     string `yaml:"updated_at"`
	Version       string `yaml:"version"`
}

// Library loads and caches pages from a directory of <slug>.md files.
type Library struct {
	dir    string
	ttl    time.Duration
	md     goldmark.Markdown
	policy *bluemonday.Policy

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	page    Page
	expires time.Time
}

func NewLibrary(dir string) *Library {
	return &Library{
		dir:    dir,
		ttl:    defaultCacheTTL,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: newPagePolicy(),
		cache:  make(map[string]cacheEntry),
	}
}

// WithCacheTTL overrides the cache duration (primarily for tests).
func (l *Library) WithCacheTTL(ttl time.Duration) *Library {
	if ttl <= 0 {
		ttl = time.Minute
	}
	l.ttl = ttl
	return l
}

// Page loads one page by slug. Slugs are restricted to simple names so a path
// can never escape the content directory.
func (l *Library) Page(slug string) (Page, error) {
	slug = sanitizeSlug(slug)
	if slug == "" {
		return Page{}, ErrNotFound
	}

	l.mu.RLock()
	entry, ok := l.cache[slug]
	l.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.page, nil
	}

	page, err := l.load(slug)
	if err != nil {
		return Page{}, err
	}
	l.mu.Lock()
	l.cache[slug] = cacheEntry{page: page, expires: time.Now().Add(l.ttl)}
	l.mu.Unlock()
	return page, nil
}

func (l *Library) load(slug string) (Page, error) {
	raw, err := os.ReadFile(filepath.Join(l.dir, slug+".md"))
	if err != nil {
		if os.IsNotExist(err) {
			return Page{}, ErrNotFound
		}
		return Page{}, fmt.Errorf("content: read %s: %w", slug, err)
	}

	fm, body := splitFrontMatter(raw)
	var meta frontMatter
	if len(fm) > 0 {
		if err := yaml.Unmarshal(fm, &meta); err != nil {
			return Page{}, fmt.Errorf("content: front matter of %s: %w", slug, err)
		}
	}

	var buf bytes.Buffer
	if err := l.md.Convert(body, &buf); err != nil {
		return Page{}, fmt.Errorf("content: render %s: %w", slug, err)
	}
	safe := l.policy.SanitizeBytes(buf.Bytes())

	title := meta.Title
	if title == "" {
		title = slug
	}
	return Page{
		Slug:          slug,
		Title:         title,
		Summary:       meta.Summary,
		Body:          template.HTML(safe),
		EffectiveDate: meta.EffectiveDate,
		UpdatedAt:     meta.UpdatedAt,
		Version:       meta.Version,
	}, nil
}

// splitFrontMatter separates a leading "---" YAML block from the body.
func splitFrontMatter(raw []byte) (fm, body []byte) {
	const delim = "---"
	s := string(raw)
	if !strings.HasPrefix(s, delim) {
		return nil, raw
	}
	rest := s[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil, raw
	}
	fm = []byte(rest[:idx])
	after := rest[idx+1+len(delim):]
	after = strings.TrimPrefix(after, "\n")
	return fm, []byte(after)
}

func sanitizeSlug(slug string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	for _, r := range slug {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			continue
		}
		return ""
	}
	return slug
}

func newPagePolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("p", "span", "table")
	policy.RequireNoFollowOnLinks(true)
	return policy
}
