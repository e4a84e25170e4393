// ABOUTME: Markdown transcript renderer.
// ABOUTME: One heading block per turn, chat metadata up top.

package export

import (
	"fmt"
	"io"
	"time"

	"github.com/bassi-ai/bassi/internal/workspace"
)

// MarkdownExporter renders a chat transcript as Markdown.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Extension() string   { return "md" }
func (e *MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }

func (e *MarkdownExporter) Export(ws *workspace.Workspace, w io.Writer) error {
	stats := ws.Stats()

	if _, err := fmt.Fprintf(w, "# %s\n\n", ws.DisplayName()); err != nil {
		return err
	}
	fmt.Fprintf(w, "**Chat:** %s  \n", ws.ID())
	fmt.Fprintf(w, "**Created:** %s  \n", stats.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "**Messages:** %d\n\n", stats.MessageCount)

	if files := ws.Files(); len(files) > 0 {
		fmt.Fprintf(w, "**Files:**\n\n")
		for _, f := range files {
			fmt.Fprintf(w, "- %s (%s, %d bytes)\n", f.Name, f.MimeType, f.Size)
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "---\n\n")

	for _, turn := range ws.History() {
		fmt.Fprintf(w, "**%s** (%s)\n\n%s\n\n", turn.Role, turn.Timestamp.Format(time.RFC3339), turn.Text)
	}
	return nil
}
