package processor

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-shiori/go-readability"
)

// MainContent runs readability over a page and returns the HTML of its main
// content block. pageURL may be empty.
func MainContent(rawHTML, pageURL string) (string, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return "", errors.New("empty document")
	}

	var base *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			base = u
		}
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err != nil {
		return "", errors.Wrap(err, "failed to process with readability")
	}
	if strings.TrimSpace(article.Content) == "" {
		return "", errors.New("readability found no main content")
	}
	return article.Content, nil
}
