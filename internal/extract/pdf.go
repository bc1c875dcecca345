package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/ledongthuc/pdf"
)

// pdfParser yields one document per page, in page order. Pages without a text
// layer produce empty content.
type pdfParser struct{}

func (pdfParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := r.NumPage()
	docs := make([]*schema.Document, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var text string
		page := r.Page(i)
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("read page %d: %w", i, err)
			}
		}

		docs = append(docs, &schema.Document{Content: text})
	}
	return docs, nil
}
