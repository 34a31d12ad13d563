// Package render converts résumé bodies to HTML and lays them out as PDF.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/cwygoda/autoapply/internal/domain"
)

var (
	markdownLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	pagesLine    = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{if .Name}}{{.Name}}{{else}}Resume{{end}}</title>
{{if .Stylesheet}}<link rel="stylesheet" href="{{.Stylesheet}}">{{end}}
</head>
<body>
<div class="header">
<div class="name">{{.Name}}</div>
<div class="contact">{{.Contact}}</div>
</div>
<main>
{{.Body}}
</main>
</body>
</html>
`))

// Config for the WeasyPrint renderer.
type Config struct {
	WorkDir    string
	Stylesheet string
	Command    string // default "weasyprint"
	PdfInfo    string // default "pdfinfo"
}

// WeasyPrint renders HTML pages to PDF with the weasyprint CLI and counts
// pages with pdfinfo.
type WeasyPrint struct {
	cfg        Config
	stylesheet template.URL
	runner     Runner
	logger     *slog.Logger
}

// NewWeasyPrint prepares the work directory. A nil runner runs real commands.
func NewWeasyPrint(cfg Config, runner Runner, logger *slog.Logger) (*WeasyPrint, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Command == "" {
		cfg.Command = "weasyprint"
	}
	if cfg.PdfInfo == "" {
		cfg.PdfInfo = "pdfinfo"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}

	w := &WeasyPrint{cfg: cfg, runner: runner, logger: logger}
	if cfg.Stylesheet != "" {
		abs, err := filepath.Abs(cfg.Stylesheet)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			logger.Warn("render.stylesheet_missing", "path", abs)
		}
		w.stylesheet = template.URL((&url.URL{Scheme: "file", Path: abs}).String())
	}
	return w, nil
}

// Page builds the full HTML document for one render.
func (w *WeasyPrint) Page(req domain.RenderRequest) (string, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Name       string
		Contact    template.HTML
		Stylesheet template.URL
		Body       template.HTML
	}{
		Name:       req.Name,
		Contact:    ContactHTML(req.Contact),
		Stylesheet: w.stylesheet,
		Body:       template.HTML(req.Body),
	})
	return buf.String(), err
}

// ContactHTML escapes the contact line and turns [text](url) into anchors.
func ContactHTML(contact string) template.HTML {
	escaped := html.EscapeString(contact)
	return template.HTML(markdownLink.ReplaceAllString(escaped, `<a href="$2">$1</a>`))
}

// Render implements domain.LayoutRenderer.
func (w *WeasyPrint) Render(ctx context.Context, req domain.RenderRequest) (*domain.Artifact, error) {
	start := time.Now()
	page, err := w.Page(req)
	if err != nil {
		return nil, fmt.Errorf("build page: %w", err)
	}

	dir, err := os.MkdirTemp(w.cfg.WorkDir, "render-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, strconv.Itoa(req.Attempt)+".html")
	out := filepath.Join(dir, strconv.Itoa(req.Attempt)+".pdf")
	if err := os.WriteFile(in, []byte(page), 0644); err != nil {
		return nil, err
	}

	if _, stderr, err := w.runner.Run(ctx, w.cfg.Command, in, out); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", w.cfg.Command, err, truncate(string(stderr), 2<<10))
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("renderer produced an empty pdf")
	}

	w.logger.Debug("render.ok", "attempt", req.Attempt, "bytes", len(data), "elapsed_ms", time.Since(start).Milliseconds())
	return &domain.Artifact{Data: data, Attempt: req.Attempt}, nil
}

// PageCount implements domain.LayoutRenderer.
func (w *WeasyPrint) PageCount(ctx context.Context, a *domain.Artifact) (int, error) {
	if a == nil || len(a.Data) == 0 {
		return 0, errors.New("empty artifact")
	}
	f, err := os.CreateTemp(w.cfg.WorkDir, "count-*.pdf")
	if err != nil {
		return 0, err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(a.Data); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	stdout, stderr, err := w.runner.Run(ctx, w.cfg.PdfInfo, f.Name())
	if err != nil {
		return 0, fmt.Errorf("%s failed: %w: %s", w.cfg.PdfInfo, err, truncate(string(stderr), 2<<10))
	}
	return ParsePages(stdout)
}

// ParsePages reads the page count from pdfinfo output.
func ParsePages(out []byte) (int, error) {
	m := pagesLine.FindSubmatch(out)
	if m == nil {
		return 0, errors.New("no Pages line in pdfinfo output")
	}
	return strconv.Atoi(string(m[1]))
}
