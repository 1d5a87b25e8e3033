package processor

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	// Line breaks and block element closers both end a menu line.
	lineBreakTagRe = regexp.MustCompile(`(?i)<br\s*/?>|<hr\s*/?>|</(?:` +
		`p|div|li|tr|h[1-6]|section|article|aside|header|footer|main|nav|` +
		`ul|ol|dl|dd|dt|table|thead|tbody|tfoot|caption|blockquote|pre|` +
		`figure|figcaption|details|summary|address|form|fieldset)\s*>`)
	cellCloseTagRe = regexp.MustCompile(`(?i)</t[dh]\s*>`)
	fragmentSepRe  = regexp.MustCompile(`[\r\n•·∙;]`)
)

// SplitBlock splits a blob of text or HTML into sanitized lines using the
// default line cap.
func SplitBlock(text string) []string {
	return defaultSanitizer.SplitBlock(text)
}

// SplitBlock breaks text on newlines, bullet glyphs, semicolons and <br>
// tags, strips the remaining markup and sanitizes the fragments.
func (s *Sanitizer) SplitBlock(text string) []string {
	return s.Sanitize(Fragments(text))
}

// Fragments is SplitBlock without the final sanitize pass. Callers that filter
// fragments before sanitizing use it directly.
func Fragments(text string) []string {
	text = lineBreakTagRe.ReplaceAllString(text, "\n")
	text = cellCloseTagRe.ReplaceAllString(text, " ")
	text = StripTags(text)
	return fragmentSepRe.Split(text, -1)
}

// StripTags returns the text content of an HTML fragment with entities
// unescaped. Script, style, noscript and title bodies are dropped.
func StripTags(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) && skip > 0 {
				skip--
			}
		}
	}
}

func isRawTextTag(name string) bool {
	switch name {
	case "script", "style", "noscript", "title":
		return true
	}
	return false
}
