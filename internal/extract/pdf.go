package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var buf bytes.Buffer
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extracting page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < pages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}
