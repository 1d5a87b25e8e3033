// Package extractor turns a venue's menu page into an ordered list of clean
// menu lines.
//
// Extraction runs an ordered list of stages of increasing aggressiveness.
// Each stage only runs while the collected item count is below MinItems, and
// its output is appended after what earlier stages found. Nothing in this
// package returns an error: failures become an empty result whose trace says
// what went wrong.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/processor"
)

// DefaultMinItems is the yield below which a page counts as not parsed.
const DefaultMinItems = 3

type Options struct {
	// MinItems is the sanitized item count that stops the fallback chain.
	MinItems int
	// MaxLines caps the number of returned items.
	MaxLines int
	// ReadabilityFallback enables the final readability-based stage.
	ReadabilityFallback bool
}

// DocumentSource fetches the raw HTML of a venue page.
type DocumentSource interface {
	Document(ctx context.Context, src menu.SourceConfig) (string, error)
}

type Extractor struct {
	minItems  int
	sanitizer *processor.Sanitizer
	stages    []stage
}

func New(opts Options) *Extractor {
	minItems := opts.MinItems
	if minItems <= 0 {
		minItems = DefaultMinItems
	}
	sanitizer := processor.NewSanitizer(opts.MaxLines)

	stages := []stage{directStage(), blockStage(), tableStage()}
	if opts.ReadabilityFallback {
		stages = append(stages, articleStage())
	}

	return &Extractor{
		minItems:  minItems,
		sanitizer: sanitizer,
		stages:    stages,
	}
}

// StageNames lists the stages in the order they are attempted.
func (e *Extractor) StageNames() []string {
	names := make([]string, len(e.stages))
	for i, s := range e.stages {
		names[i] = s.Name
	}
	return names
}

// FromURL fetches the venue page through source and extracts it.
func (e *Extractor) FromURL(ctx context.Context, source DocumentSource, src menu.SourceConfig) menu.ExtractionResult {
	if strings.TrimSpace(src.URL) == "" {
		return failed("fetch: no url configured")
	}

	html, err := source.Document(ctx, src)
	if err != nil {
		log.Warn().Err(err).Str("url", src.URL).Msg("menu page fetch failed")
		return failed(fmt.Sprintf("fetch %s: failed: %v", src.URL, err))
	}

	result := e.ExtractHTML(html, src)
	result.Trace = fmt.Sprintf("fetch %s: ok, %d bytes\n", src.URL, len(html)) + result.Trace
	return result
}

// ExtractHTML parses html and extracts it.
func (e *Extractor) ExtractHTML(html string, src menu.SourceConfig) menu.ExtractionResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return failed(fmt.Sprintf("parse: failed: %v", err))
	}
	return e.Extract(doc, src)
}

// Extract runs the stage chain over doc.
func (e *Extractor) Extract(doc *goquery.Document, src menu.SourceConfig) (result menu.ExtractionResult) {
	tr := &tracer{}
	defer func() {
		if r := recover(); r != nil {
			tr.add("panic", "%v", r)
			result = menu.ExtractionResult{Items: []string{}, Trace: tr.String()}
		}
	}()

	scope := e.scope(doc, src, tr)

	items := []string{}
	var fired []string
	for _, st := range e.stages {
		if len(items) >= e.minItems {
			break
		}
		before := len(items)
		lines := st.Run(stageInput{scope: scope, src: src, trace: tr})
		items = e.sanitizer.Sanitize(append(items, lines...))

		added := len(items) - before
		tr.add(st.Name, "+%d item(s), %d total", added, len(items))
		log.Debug().Str("url", src.URL).Str("stage", st.Name).Int("count", added).Msg("extraction stage finished")
		if added > 0 {
			fired = append(fired, st.Name)
		}
	}

	source := "none"
	if len(fired) > 0 {
		source = strings.Join(fired, "+")
	}
	tr.add("result", "%d item(s) from %s", len(items), source)
	return menu.ExtractionResult{Items: items, Trace: tr.String()}
}

// scope narrows doc to the configured container when it matches anything.
func (e *Extractor) scope(doc *goquery.Document, src menu.SourceConfig, tr *tracer) *goquery.Selection {
	if src.Container == "" {
		return doc.Selection
	}
	container := doc.Find(src.Container)
	if container.Length() == 0 {
		tr.add("scope", "container %q not found, using whole document", src.Container)
		return doc.Selection
	}
	tr.add("scope", "container %q matched %d element(s)", src.Container, container.Length())
	return container
}

func failed(trace string) menu.ExtractionResult {
	return menu.ExtractionResult{Items: []string{}, Trace: trace}
}

type tracer struct {
	b strings.Builder
}

func (t *tracer) add(label, format string, args ...any) {
	t.b.WriteString(label)
	t.b.WriteString(": ")
	fmt.Fprintf(&t.b, format, args...)
	t.b.WriteByte('\n')
}

func (t *tracer) String() string {
	return strings.TrimRight(t.b.String(), "\n")
}
