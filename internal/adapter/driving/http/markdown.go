package httphandler

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// descriptionMarkdown renders GitHub-flavored markdown. Raw HTML in a
// description is dropped rather than passed through.
var descriptionMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// descriptionPolicy opens external links in a new tab, marked nofollow.
var descriptionPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// RenderMarkdown converts a project description to sanitized HTML. A
// blank description renders as "".
func RenderMarkdown(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := descriptionMarkdown.Convert([]byte(description), &buf); err != nil {
		return descriptionPolicy.Sanitize(description)
	}
	return descriptionPolicy.Sanitize(buf.String())
}
