// ABOUTME: Transcript exporters for persisted chats: markdown, JSON, HTML.
// ABOUTME: HTML is rendered from the markdown form via goldmark.

package export

import (
	"fmt"
	"io"

	"github.com/bassi-ai/bassi/internal/workspace"
)

// Exporter renders one chat transcript to a writer.
type Exporter interface {
	Export(ws *workspace.Workspace, w io.Writer) error
	Extension() string
	ContentType() string
}

// NewExporter returns the exporter for a format name.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	case "html":
		return &HTMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: md, json, html)", format)
	}
}
