// Package extractor implements the Text Extractor (§4.3): a closed-set
// dispatcher over {Pdf, Text, Html} variants selected by file extension.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/contexta-labs/filingsrag/internal/core"
)

// DispatchExtractor is the format-dispatched core.DocumentExtractor
// described in §4.3/§9: a closed set of variants selected by the
// lowercased file extension, never by content sniffing.
type DispatchExtractor struct {
	pdf  *PDFExtractor
	html *HTMLExtractor
	text *TextExtractor
}

// NewDispatchExtractor wires the three format variants. useOCR is
// forwarded to the PDF variant (docconv's readability/OCR toggle).
func NewDispatchExtractor(useOCR bool) *DispatchExtractor {
	return &DispatchExtractor{
		pdf:  NewPDFExtractor(useOCR),
		html: NewHTMLExtractor(),
		text: NewTextExtractor(),
	}
}

var _ core.DocumentExtractor = (*DispatchExtractor)(nil)

// ExtractText dispatches on the lowercased extension of fileName.
// Extractors must not perform I/O beyond the bytes already provided.
func (d *DispatchExtractor) ExtractText(ctx context.Context, fileName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := extensionOf(fileName)
	switch ext {
	case ".pdf":
		return d.pdf.ExtractText(ctx, fileName, data)
	case ".txt":
		return d.text.ExtractText(ctx, fileName, data)
	case ".html", ".htm":
		return d.html.ExtractText(ctx, fileName, data)
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, ext)
	}
}

func extensionOf(fileName string) string {
	i := strings.LastIndex(fileName, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(fileName[i:])
}
