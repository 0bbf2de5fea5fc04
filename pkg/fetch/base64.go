package fetch

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodePDF decodes a base64 PDF payload, accepting either a raw base64
// string or a data URL. The decoded bytes must fit within maxSize and
// start with the PDF magic bytes.
func DecodePDF(payload string, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ";base64,")
		if idx < 0 {
			return nil, newError(CodeInvalidBase64, "Invalid data URL format")
		}
		payload = payload[idx+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		// Some encoders omit padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return nil, wrapError(CodeInvalidBase64, "Invalid base64-encoded PDF", err)
		}
	}

	if int64(len(data)) > maxSize {
		return nil, newError(CodeFileTooLarge,
			fmt.Sprintf("PDF exceeds maximum size of %dMB", maxSize/(1024*1024)))
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, newError(CodeInvalidPDF, "Invalid PDF data")
	}
	return data, nil
}
