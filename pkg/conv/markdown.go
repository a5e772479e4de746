// Package conv converts model output between formats for display.
package conv

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/inbucket/html2text"
	"github.com/microcosm-cc/bluemonday"
)

var (
	extensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	htmlFlags  = html.CommonFlags
	textPolicy = bluemonday.NewPolicy()
)

func init() {
	// Structural tags only; everything else is stripped before the text
	// pass. Href survives so links render as "text ( url )".
	textPolicy.AllowElements(
		"p", "br", "b", "strong", "i", "em", "code", "pre", "blockquote",
		"ul", "ol", "li", "h1", "h2", "h3", "h4", "h5", "h6",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	textPolicy.AllowAttrs("href").OnElements("a")
}

// MarkdownToText renders markdown to plain text suitable for a terminal.
// Raw HTML embedded in the input is sanitized, never passed through.
func MarkdownToText(md []byte) string {
	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	unsafeHTML := markdown.Render(p.Parse(md), renderer)

	sanitized := textPolicy.SanitizeBytes(unsafeHTML)

	text, err := html2text.FromString(string(sanitized), html2text.Options{
		OmitLinks:    false,
		PrettyTables: true,
	})
	if err != nil {
		// Fall back to the raw input rather than losing the content.
		return strings.TrimSpace(string(md))
	}
	return text
}
