package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF concatenates the plain text of every page. Pages with no text
// layer are skipped rather than failing the whole document.
func extractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var pages []string
	for n := 1; n <= reader.NumPage(); n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", n, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}
