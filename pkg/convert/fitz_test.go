package convert

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentventalon/docuprocess/pkg/observability"
)

// minimalPDF builds a single-page document with the given text. MuPDF
// repairs the missing xref table when opening it.
func minimalPDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (%s) Tj ET", text)
	return []byte(fmt.Sprintf(`%%PDF-1.4
1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj
2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj
3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Contents 4 0 R/Resources<</Font<</F1 5 0 R>>>>>>endobj
4 0 obj<</Length %d>>stream
%s
endstream
endobj
5 0 obj<</Type/Font/Subtype/Type1/BaseFont/Helvetica>>endobj
trailer<</Root 1 0 R/Size 6>>
%%%%EOF
`, len(stream), stream))
}

func TestFitzConverterConvert(t *testing.T) {
	c := NewFitzConverter(observability.NewLogger(observability.ErrorLevel, nil))

	result, err := c.Convert(context.Background(), minimalPDF("Hello World"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
	assert.Contains(t, result.Markdown, "Hello World")
}

func TestFitzConverterRejectsGarbage(t *testing.T) {
	c := NewFitzConverter(observability.NewLogger(observability.ErrorLevel, nil))

	_, err := c.Convert(context.Background(), []byte("%PDF-but not really a document"))
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeConversionFailed, ce.ErrorCode())
}

func TestFitzConverterCancelledContext(t *testing.T) {
	c := NewFitzConverter(observability.NewLogger(observability.ErrorLevel, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Convert(ctx, minimalPDF("Hello"))
	require.Error(t, err)
}
