// ABOUTME: HTML transcript renderer built on the markdown form.
// ABOUTME: Goldmark converts the markdown body; a minimal page wraps it.

package export

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"

	"github.com/bassi-ai/bassi/internal/workspace"
)

// HTMLExporter renders a chat transcript as a standalone HTML page.
type HTMLExporter struct{}

func (e *HTMLExporter) Extension() string   { return "html" }
func (e *HTMLExporter) ContentType() string { return "text/html; charset=utf-8" }

func (e *HTMLExporter) Export(ws *workspace.Workspace, w io.Writer) error {
	var md bytes.Buffer
	if err := (&MarkdownExporter{}).Export(ws, &md); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}

	if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n",
		html.EscapeString(ws.DisplayName())); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}
