package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/processor"
)

// stage is one extraction strategy. Run returns candidate lines; the
// extractor merges and sanitizes them.
type stage struct {
	Name string
	Run  func(in stageInput) []string
}

type stageInput struct {
	scope *goquery.Selection
	src   menu.SourceConfig
	trace *tracer
}

// A bare price such as "6,50 €" or "7 eur" is never a dish.
var barePriceRe = regexp.MustCompile(`(?i)^(?:€\s*)?\d+(?:[.,]\d{1,2})?\s*(?:€|eur|euro|eur\.|,-|kč|czk)$`)

// directStage collects the text of every element matched by the configured
// selectors, in selector order.
func directStage() stage {
	return stage{
		Name: "direct",
		Run: func(in stageInput) []string {
			var lines []string
			for _, sel := range in.src.Selectors {
				matched := in.scope.Find(sel)
				in.trace.add("direct", "selector %q matched %d element(s)", sel, matched.Length())
				matched.Each(func(_ int, s *goquery.Selection) {
					lines = append(lines, s.Text())
				})
			}
			if len(in.src.Selectors) == 0 {
				in.trace.add("direct", "no selectors configured")
			}
			return lines
		},
	}
}

// blockStage splits the markup of the block selectors, or of the whole scope
// when none are configured, into lines.
func blockStage() stage {
	return stage{
		Name: "block",
		Run: func(in stageInput) []string {
			var blob string
			if len(in.src.BlockSelectors) == 0 {
				in.trace.add("block", "no block selectors, using whole scope")
				blob = innerHTML(bodyOf(in.scope))
			} else {
				var parts []string
				for _, sel := range in.src.BlockSelectors {
					matched := in.scope.Find(sel)
					in.trace.add("block", "selector %q matched %d element(s)", sel, matched.Length())
					if matched.Length() > 0 {
						parts = append(parts, innerHTML(matched))
					}
				}
				blob = strings.Join(parts, "\n")
			}
			return filterFragments(processor.Fragments(blob))
		},
	}
}

// tableStage splits the contents of every table in scope.
func tableStage() stage {
	return stage{
		Name: "table",
		Run: func(in stageInput) []string {
			tables := in.scope.Filter("table").AddSelection(in.scope.Find("table"))
			in.trace.add("table", "%d table(s) found", tables.Length())
			if tables.Length() == 0 {
				return nil
			}
			return processor.Fragments(innerHTML(tables))
		},
	}
}

// articleStage hands the scope to readability and splits its main content.
func articleStage() stage {
	return stage{
		Name: "article",
		Run: func(in stageInput) []string {
			content, err := processor.MainContent(outerHTML(in.scope), in.src.URL)
			if err != nil {
				in.trace.add("article", "readability failed: %v", err)
				return nil
			}
			return filterFragments(processor.Fragments(content))
		},
	}
}

// bodyOf narrows a whole-document scope to <body> so head content such as
// the page title never becomes a menu line.
func bodyOf(scope *goquery.Selection) *goquery.Selection {
	if scope.Length() != 1 || scope.Nodes[0].Type != html.DocumentNode {
		return scope
	}
	if body := scope.Find("body"); body.Length() > 0 {
		return body
	}
	return scope
}

// filterFragments drops fragments too short to be a dish and bare prices.
func filterFragments(fragments []string) []string {
	kept := make([]string, 0, len(fragments))
	for _, f := range fragments {
		clean := processor.CleanLine(f)
		if utf8.RuneCountInString(clean) <= 3 {
			continue
		}
		if barePriceRe.MatchString(clean) {
			continue
		}
		kept = append(kept, clean)
	}
	return kept
}

// innerHTML joins the inner markup of every node in sel with line breaks.
func innerHTML(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if h, err := s.Html(); err == nil && h != "" {
			parts = append(parts, h)
		}
	})
	return strings.Join(parts, "\n")
}

func outerHTML(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if h, err := goquery.OuterHtml(s); err == nil && h != "" {
			parts = append(parts, h)
		}
	})
	return strings.Join(parts, "\n")
}
