package transcription

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

var errEmptyDocument = errors.New("document has no text")

// pdfText extracts the plain text layer of a PDF held in memory.
func pdfText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errEmptyDocument
	}
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	r, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// mainText extracts the readable body of an HTML page.
func mainText(html string, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract main text: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", errEmptyDocument
	}
	return text, nil
}
