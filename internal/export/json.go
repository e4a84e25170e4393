// ABOUTME: JSON transcript renderer.
// ABOUTME: Emits a single document with chat metadata and all turns.

package export

import (
	"encoding/json"
	"io"

	"github.com/bassi-ai/bassi/internal/workspace"
)

// JSONExporter renders a chat transcript as a single JSON document.
type JSONExporter struct{}

func (e *JSONExporter) Extension() string   { return "json" }
func (e *JSONExporter) ContentType() string { return "application/json" }

// transcript is the exported document shape.
type transcript struct {
	ChatID      string              `json:"chat_id"`
	DisplayName string              `json:"display_name"`
	State       workspace.State     `json:"state"`
	Stats       workspace.Stats     `json:"stats"`
	Files       []workspace.FileRef `json:"files,omitempty"`
	Turns       []workspace.Turn    `json:"turns"`
}

func (e *JSONExporter) Export(ws *workspace.Workspace, w io.Writer) error {
	doc := transcript{
		ChatID:      ws.ID(),
		DisplayName: ws.DisplayName(),
		State:       ws.State(),
		Stats:       ws.Stats(),
		Files:       ws.Files(),
		Turns:       ws.History(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
