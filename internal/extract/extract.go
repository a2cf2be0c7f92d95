package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"civiclens/internal/domain"
	"civiclens/internal/textutil"
)

const (
	// MinContentWords is the bar both stages must clear for the
	// document to count as readable content.
	MinContentWords = 30

	// Paragraphs under this length are nav crumbs and captions,
	// not article text.
	minParagraphWords = 3
)

// Elements that never carry article text.
var noiseSelectors = []string{
	"script", "style", "noscript", "template",
	"header", "footer", "nav", "aside",
}

// Extraction never sees the page URL, so readability gets a fixed base
// for resolving relative links.
var placeholderURL = &url.URL{Scheme: "https", Host: "localhost"}

// Extract recovers readable article text from raw HTML.
//
// The primary stage lets go-readability score the DOM for the main
// content block. General extractors mis-fire on some layouts (paywall
// snippets, script-heavy shells), so when the primary stage yields
// fewer than MinContentWords a literal paragraph-stitching fallback
// runs instead. If both stages come up short the document has no
// usable content and the request fails with domain.CodeNoContent.
func Extract(html string) (domain.Extraction, error) {
	text := primaryText(html)
	if words := textutil.WordCount(text); words >= MinContentWords {
		return domain.Extraction{
			Text:      text,
			WordCount: words,
			Stage:     domain.StagePrimary,
		}, nil
	}

	text = fallbackText(html)
	if words := textutil.WordCount(text); words >= MinContentWords {
		return domain.Extraction{
			Text:      text,
			WordCount: words,
			Stage:     domain.StageFallback,
		}, nil
	}

	return domain.Extraction{}, &domain.Error{
		Code:    domain.CodeNoContent,
		Message: "Could not extract article text",
	}
}

func primaryText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	parser := readability.NewParser()

	article, err := parser.Parse(strings.NewReader(html), placeholderURL)
	if err != nil {
		return ""
	}

	return textutil.Normalize(article.TextContent)
}

// fallbackText stitches visible paragraph text, preferring paragraphs
// nested under article or main elements. It is cheaper and more
// literal than the scorer: it recovers content the primary stage
// misses at the cost of some boilerplate, which is acceptable because
// it only runs once the primary stage has already failed the bar.
func fallbackText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	var parts []string
	accumulated := 0

	doc.Find("article p, main p, p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.TrimSpace(p.Text())
		if text != "" && textutil.WordCount(text) >= minParagraphWords {
			parts = append(parts, text)
			accumulated += len(text) + 1
		}

		return accumulated <= textutil.MaxInputChars
	})

	return textutil.Normalize(strings.Join(parts, " "))
}
