package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexta-labs/filingsrag/internal/core"
)

func TestDispatch_Text(t *testing.T) {
	d := NewDispatchExtractor(false)
	got, err := d.ExtractText(context.Background(), "doc.txt", []byte("hello\nworld"))
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", got)
}

func TestDispatch_HTML_StripsScriptStyleAndTags(t *testing.T) {
	d := NewDispatchExtractor(false)
	html := `<html><head><style>.a{color:red}</style></head><body>
		<script>alert('x')</script>
		<p>Hello   <b>World</b></p>
	</body></html>`
	got, err := d.ExtractText(context.Background(), "doc.html", []byte(html))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", got)
}

func TestDispatch_UnknownFormat(t *testing.T) {
	d := NewDispatchExtractor(false)
	_, err := d.ExtractText(context.Background(), "doc.xyz", []byte("data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestDispatch_CaseInsensitiveExtension(t *testing.T) {
	d := NewDispatchExtractor(false)
	_, err := d.ExtractText(context.Background(), "doc.TXT", []byte("x"))
	require.NoError(t, err)
	_, err = d.ExtractText(context.Background(), "doc.HTM", []byte("<p>x</p>"))
	require.NoError(t, err)
}
