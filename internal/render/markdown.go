package render

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"

	"Shurahub/internal/cache"
)

// Renderer converts markdown to display markup
type Renderer interface {
	Render(markdown string) (string, error)
}

// HTMLRenderer renders markdown to sanitized HTML
type HTMLRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	cache  *cache.RenderCache
	logger *slog.Logger
}

// NewHTMLRenderer creates a GitHub-flavoured markdown renderer. Output is
// passed through a user-generated-content sanitizer policy.
func NewHTMLRenderer(renderCache *cache.RenderCache, logger *slog.Logger) (*HTMLRenderer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if renderCache == nil {
		renderCache = cache.NewRenderCache(0)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(goldhtml.WithHardWraps()),
	)

	return &HTMLRenderer{
		md:     md,
		policy: bluemonday.UGCPolicy(),
		cache:  renderCache,
		logger: logger,
	}, nil
}

// Render converts markdown to HTML
func (r *HTMLRenderer) Render(markdown string) (string, error) {
	if out, ok := r.cache.Load(markdown); ok {
		return out, nil
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	out := r.policy.Sanitize(buf.String())

	r.cache.Store(markdown, out)
	return out, nil
}

// MustRender renders markdown and falls back to escaped text on failure
func MustRender(r Renderer, markdown string, logger *slog.Logger) string {
	out, err := r.Render(markdown)
	if err != nil {
		if logger != nil {
			logger.Warn("markdown render failed, showing raw text", "error", err)
		}
		return "<pre>" + html.EscapeString(markdown) + "</pre>"
	}
	return out
}
