package extractor

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLExtractor strips script/style blocks, removes remaining tags,
// decodes entities (goquery/golang.org/x/net/html does this for us via
// .Text()), and collapses whitespace, per §4.3.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ExtractText implements the HTML branch of the dispatcher.
func (e *HTMLExtractor) ExtractText(ctx context.Context, fileName string, data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html %s: %w", fileName, err)
	}

	doc.Find("script, style").Remove()

	text := doc.Text()
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}
