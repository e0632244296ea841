package extractor

import "context"

// TextExtractor returns plain-text content verbatim.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) ExtractText(ctx context.Context, fileName string, data []byte) (string, error) {
	return string(data), nil
}
