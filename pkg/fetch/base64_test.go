package fetch

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePDF(t *testing.T) {
	pdf := []byte("%PDF-1.4 minimal")
	encoded := base64.StdEncoding.EncodeToString(pdf)

	t.Run("raw base64", func(t *testing.T) {
		data, err := DecodePDF(encoded, 0)
		require.NoError(t, err)
		assert.Equal(t, pdf, data)
	})

	t.Run("unpadded base64", func(t *testing.T) {
		data, err := DecodePDF(strings.TrimRight(encoded, "="), 0)
		require.NoError(t, err)
		assert.Equal(t, pdf, data)
	})

	t.Run("data url", func(t *testing.T) {
		data, err := DecodePDF("data:application/pdf;base64,"+encoded, 0)
		require.NoError(t, err)
		assert.Equal(t, pdf, data)
	})

	t.Run("data url without base64 marker", func(t *testing.T) {
		_, err := DecodePDF("data:application/pdf,"+encoded, 0)
		assertFetchCode(t, err, CodeInvalidBase64)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := DecodePDF("not!!valid@@base64", 0)
		assertFetchCode(t, err, CodeInvalidBase64)
	})

	t.Run("not a pdf", func(t *testing.T) {
		_, err := DecodePDF(base64.StdEncoding.EncodeToString([]byte("plain text")), 0)
		assertFetchCode(t, err, CodeInvalidPDF)
	})

	t.Run("too large", func(t *testing.T) {
		big := append([]byte("%PDF-"), make([]byte, 64)...)
		_, err := DecodePDF(base64.StdEncoding.EncodeToString(big), 32)
		assertFetchCode(t, err, CodeFileTooLarge)
	})
}
