package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/vincentventalon/docuprocess/pkg/observability"
)

// FitzConverter extracts Markdown from PDFs using MuPDF.
type FitzConverter struct {
	logger *observability.Logger
}

// NewFitzConverter creates a MuPDF-backed converter.
func NewFitzConverter(logger *observability.Logger) *FitzConverter {
	return &FitzConverter{logger: logger}
}

// Convert renders each page's text and joins pages with a rule separator.
func (c *FitzConverter) Convert(ctx context.Context, pdf []byte) (*Result, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		c.logger.WithError(err).Errorf("failed to open PDF document")
		return nil, &Error{Message: fmt.Sprintf("Failed to convert PDF: %v", err), Err: err}
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	pages := make([]string, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Message: "Failed to convert PDF: cancelled", Err: err}
		}
		text, err := doc.Text(i)
		if err != nil {
			c.logger.WithError(err).WithField("page", i).Errorf("failed to extract page text")
			return nil, &Error{Message: fmt.Sprintf("Failed to convert PDF: %v", err), Err: err}
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	return &Result{
		Markdown:  strings.Join(pages, "\n\n-----\n\n"),
		PageCount: pageCount,
	}, nil
}
