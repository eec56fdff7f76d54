package httphandler

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ericfisherdev/elvagent/internal/application"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
	reportPage    *template.Template
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()

	reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>PR #{{.Number}} fix report</title></head>
<body>
{{.Body}}
</body>
</html>
`))
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// reportMarkdown renders a pull request's ledger history as a markdown document.
func reportMarkdown(h *application.PRHistory) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# PR #%d fix report\n\n", h.Number)
	fmt.Fprintf(&b, "Fix attempts: **%d** of %d", h.FixAttempts, h.MaxAttempts)
	if h.BreakerOpen {
		b.WriteString(" (circuit breaker open, manual intervention required)")
	}
	b.WriteString("\n\n")

	if len(h.Entries) == 0 {
		b.WriteString("_No recorded events._\n")
		return b.String()
	}

	b.WriteString("| processed | commit | event | action |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, e := range h.Entries {
		fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n",
			e.ProcessedAt.UTC().Format(time.RFC3339),
			shortSHA(e.HeadSHA),
			e.Kind,
			e.Action,
		)
	}
	return b.String()
}

// renderReport produces the full HTML page for a pull request's history.
func renderReport(h *application.PRHistory) ([]byte, error) {
	var buf bytes.Buffer
	err := reportPage.Execute(&buf, struct {
		Number int
		Body   template.HTML
	}{
		Number: h.Number,
		// RenderMarkdown output is sanitized by bluemonday.
		Body: template.HTML(RenderMarkdown(reportMarkdown(h))), //nolint:gosec
	})
	if err != nil {
		return nil, fmt.Errorf("render report for #%d: %w", h.Number, err)
	}
	return buf.Bytes(), nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
