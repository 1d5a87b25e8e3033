package processor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLines bounds the output of a single sanitize pass.
const DefaultMaxLines = 48

const labelMarkers = "•·∙-–— "

var (
	whitespaceRe = regexp.MustCompile(`[\s\p{Zs}\x{200B}\x{FEFF}]+`)
	bulletRe     = regexp.MustCompile(`\s*[•·∙]\s*`)
	punctRe      = regexp.MustCompile(`(\s*)([:\-–])(\s*)`)
	glyphOnlyRe  = regexp.MustCompile(`^[•·∙\-–—\s]+$`)

	// Day labels head each day's section on weekly menu pages.
	weekdayRe = regexp.MustCompile(`(?i)^(?:pondelok|utorok|streda|štvrtok|stvrtok|piatok|sobota|nedeľa|nedela|` +
		`monday|tuesday|wednesday|thursday|friday|saturday|sunday)(?:[^\p{L}]|$)`)
	headingRe = regexp.MustCompile(`(?i)^(?:(?:denné|denne|obedové|obedove|daily|lunch)\s+menu|menu\s+dňa|menu\s+dna)(?:[^\p{L}]|$)`)
)

// Sanitizer turns raw text fragments into clean, comparable menu lines.
type Sanitizer struct {
	// MaxLines caps the number of returned lines. Zero means DefaultMaxLines.
	MaxLines int
}

// NewSanitizer returns a Sanitizer keeping at most maxLines lines.
func NewSanitizer(maxLines int) *Sanitizer {
	return &Sanitizer{MaxLines: maxLines}
}

var defaultSanitizer = &Sanitizer{}

// Sanitize cleans lines with the default line cap.
func Sanitize(lines []string) []string {
	return defaultSanitizer.Sanitize(lines)
}

// Sanitize normalizes every line, drops headings and decoration, removes
// duplicates (first occurrence wins) and truncates to MaxLines. The result is
// never nil and sanitizing it again returns the same slice contents.
func (s *Sanitizer) Sanitize(lines []string) []string {
	limit := s.MaxLines
	if limit <= 0 {
		limit = DefaultMaxLines
	}

	out := make([]string, 0, min(len(lines), limit))
	seen := make(map[string]struct{}, len(lines))
	for _, raw := range lines {
		line := CleanLine(raw)
		if !keepLine(line) {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}

// CleanLine applies the per-line transform without any filtering.
func CleanLine(line string) string {
	line = norm.NFC.String(line)
	line = whitespaceRe.ReplaceAllString(line, " ")
	line = bulletRe.ReplaceAllString(line, " • ")
	line = normalizePunctuation(line)
	return strings.TrimSpace(line)
}

func keepLine(line string) bool {
	// Labels are often rendered as list items: "• Pondelok", "- Denné menu".
	label := strings.TrimLeft(line, labelMarkers)
	switch {
	case line == "":
		return false
	case glyphOnlyRe.MatchString(line):
		return false
	case weekdayRe.MatchString(label):
		return false
	case headingRe.MatchString(label):
		return false
	}
	return true
}

// normalizePunctuation leaves exactly one space after ':', '-' and '–'.
// Hyphenated words, numeric ranges and clock times are left as they are.
func normalizePunctuation(s string) string {
	matches := punctRe.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(matches))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		spaceBefore := m[3] > m[2]
		spaceAfter := m[7] > m[6]
		sym := s[m[4]:m[5]]

		prev, _ := utf8.DecodeLastRuneInString(s[:start])
		next, _ := utf8.DecodeRuneInString(s[end:])

		b.WriteString(s[last:start])
		switch {
		case !spaceBefore && !spaceAfter && sym == ":" && unicode.IsDigit(prev) && unicode.IsDigit(next):
			b.WriteString(sym)
		case !spaceBefore && !spaceAfter && sym != ":" && isWordRune(prev) && isWordRune(next):
			b.WriteString(sym)
		case sym == ":":
			b.WriteString(": ")
		default:
			if spaceBefore {
				b.WriteByte(' ')
			}
			b.WriteString(sym)
			b.WriteByte(' ')
		}
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
