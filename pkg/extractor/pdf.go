// Package extractor turns PDF files into ordered per-page text.
package extractor

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/internal/types"
)

var _ types.Extractor = (*PDF)(nil)

// PDF extracts page text with the ledongthuc/pdf reader.
type PDF struct{}

func NewPDF() *PDF {
	return &PDF{}
}

// ExtractPages returns the plain text of every page, in page order.
// Pages with no extractable text are skipped. A file that cannot be
// opened or parsed fails with ErrUnreadableDocument.
func (e *PDF) ExtractPages(path string) ([]models.Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrUnreadableDocument, path, err)
	}
	defer f.Close()

	var pages []models.Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: page %d: %v", models.ErrUnreadableDocument, path, i, err)
		}
		if text == "" {
			continue
		}

		pages = append(pages, models.Page{Number: i, Text: text})
	}

	return pages, nil
}
