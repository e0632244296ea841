package extractor

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv"
)

// PDFExtractor delegates PDF text extraction to docconv, the same
// library the teacher wraps in ingestion_engine/document_extractor.go.
type PDFExtractor struct {
	useReadability bool
}

// NewPDFExtractor constructs a PDF extractor. useReadability toggles
// docconv's readability/OCR heuristics for scanned documents.
func NewPDFExtractor(useReadability bool) *PDFExtractor {
	return &PDFExtractor{useReadability: useReadability}
}

// ExtractText converts data to normalized text via docconv.Convert.
func (e *PDFExtractor) ExtractText(ctx context.Context, fileName string, data []byte) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv pdf extraction failed for %s: %w", fileName, err)
	}
	return res.Body, nil
}
