// ABOUTME: Tests for transcript exporters.
// ABOUTME: Checks format selection and rendered content for each format.

package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassi-ai/bassi/internal/workspace"
)

func exportTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.Create(t.TempDir(), "c1")
	require.NoError(t, err)
	require.NoError(t, ws.SetDisplayName("Trip planning"))
	require.NoError(t, ws.AppendTurn("user", "Where should I go?"))
	require.NoError(t, ws.AppendTurn("assistant", "Lisbon is lovely in May."))
	return ws
}

func TestNewExporterFormats(t *testing.T) {
	for _, format := range []string{"md", "markdown", "json", "html"} {
		exp, err := NewExporter(format)
		require.NoError(t, err, format)
		assert.NotEmpty(t, exp.Extension())
		assert.NotEmpty(t, exp.ContentType())
	}

	_, err := NewExporter("xml")
	assert.Error(t, err)
}

func TestMarkdownExport(t *testing.T) {
	ws := exportTestWorkspace(t)

	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(ws, &buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Trip planning"))
	assert.Contains(t, out, "**Chat:** c1")
	assert.Contains(t, out, "Where should I go?")
	assert.Contains(t, out, "Lisbon is lovely in May.")
}

func TestJSONExportRoundTrips(t *testing.T) {
	ws := exportTestWorkspace(t)

	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{}).Export(ws, &buf))

	var doc struct {
		ChatID string           `json:"chat_id"`
		Turns  []workspace.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "c1", doc.ChatID)
	require.Len(t, doc.Turns, 2)
	assert.Equal(t, "user", doc.Turns[0].Role)
}

func TestHTMLExportRendersMarkdown(t *testing.T) {
	ws := exportTestWorkspace(t)

	var buf bytes.Buffer
	require.NoError(t, (&HTMLExporter{}).Export(ws, &buf))

	out := buf.String()
	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, "<title>Trip planning</title>")
	// The markdown heading must have been converted to an element.
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "Lisbon is lovely in May.")
}
