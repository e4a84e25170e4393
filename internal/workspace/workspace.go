// ABOUTME: Durable on-disk storage for a single chat's metadata and history.
// ABOUTME: Every mutating call persists synchronously before returning.

package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// ErrNotFound indicates no valid workspace exists for the requested chat ID.
// Callers should treat this as "create a new chat", not as a fatal error.
var ErrNotFound = errors.New("workspace not found")

// ErrInvalidChatID indicates a chat ID that is unsafe to use as a directory name.
var ErrInvalidChatID = errors.New("invalid chat id")

const (
	metadataFile = "workspace.json"
	historyFile  = "history.json"
)

// chatIDPattern restricts chat IDs to filesystem-safe characters. Client-supplied
// IDs pass through here before ever touching a path.
var chatIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// State is the lifecycle state of a chat workspace.
type State string

const (
	StateCreated   State = "created"
	StateAutoNamed State = "auto_named"
	StateFinalized State = "finalized"
	StateArchived  State = "archived"
)

// Turn is one conversation turn, persisted in insertion order.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// FileRef describes an uploaded file associated with a chat.
type FileRef struct {
	Name     string `json:"name"`
	SHA256   string `json:"sha256"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// Stats is a read-only snapshot of a workspace's bookkeeping fields.
type Stats struct {
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
	FileCount    int       `json:"file_count"`
}

// metadata is the persisted workspace.json record. Its presence marks a
// directory as a valid workspace.
type metadata struct {
	ChatID       string    `json:"chat_id"`
	DisplayName  string    `json:"display_name"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
	FileCount    int       `json:"file_count"`
	Files        []FileRef `json:"files,omitempty"`
}

// Workspace is the durable representation of one chat. The chat ID is
// immutable once created; the workspace directory is the sole authority
// for the chat's persisted state.
type Workspace struct {
	mu    sync.Mutex
	dir   string
	meta  metadata
	turns []Turn
}

// ValidChatID reports whether id is safe to use as a workspace directory name.
func ValidChatID(id string) bool {
	return id != "" && len(id) <= 128 && chatIDPattern.MatchString(id)
}

// Exists reports whether a valid workspace marker file is present for the
// given chat ID.
func Exists(basePath, chatID string) bool {
	if !ValidChatID(chatID) {
		return false
	}
	info, err := os.Stat(filepath.Join(basePath, chatID, metadataFile))
	return err == nil && info.Mode().IsRegular()
}

// Create initializes a new empty workspace directory for the given chat ID.
func Create(basePath, chatID string) (*Workspace, error) {
	if !ValidChatID(chatID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChatID, chatID)
	}

	dir := filepath.Join(basePath, chatID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace directory: %w", err)
	}

	now := time.Now().UTC()
	w := &Workspace{
		dir: dir,
		meta: metadata{
			ChatID:       chatID,
			DisplayName:  "New chat",
			State:        StateCreated,
			CreatedAt:    now,
			LastActivity: now,
		},
	}

	if err := w.persistLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

// Load reads a persisted workspace. Absent or unparsable metadata is
// reported as ErrNotFound, which callers must treat as "does not exist".
func Load(basePath, chatID string) (*Workspace, error) {
	if !ValidChatID(chatID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChatID, chatID)
	}

	dir := filepath.Join(basePath, chatID)
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, chatID)
	}

	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: corrupt metadata", ErrNotFound, chatID)
	}
	if meta.ChatID != chatID {
		return nil, fmt.Errorf("%w: %s: metadata chat id mismatch", ErrNotFound, chatID)
	}

	w := &Workspace{dir: dir, meta: meta}

	histData, err := os.ReadFile(filepath.Join(dir, historyFile))
	if err == nil {
		if err := json.Unmarshal(histData, &w.turns); err != nil {
			return nil, fmt.Errorf("%w: %s: corrupt history", ErrNotFound, chatID)
		}
	}

	return w, nil
}

// ID returns the immutable chat ID.
func (w *Workspace) ID() string {
	return w.meta.ChatID
}

// DisplayName returns the current display name.
func (w *Workspace) DisplayName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.meta.DisplayName
}

// State returns the current lifecycle state.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.meta.State
}

// AppendTurn appends one conversation turn and persists it immediately.
// Appends are serialized per workspace; a crash loses at most the
// in-flight turn. The workspace layer does NOT deduplicate turns - a
// retried append produces a second turn.
func (w *Workspace) AppendTurn(role, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.turns = append(w.turns, Turn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	w.meta.MessageCount = len(w.turns)
	w.meta.LastActivity = time.Now().UTC()

	return w.persistLocked()
}

// History returns all conversation turns in original append order, for
// replay into a freshly acquired agent handle.
func (w *Workspace) History() []Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// SetDisplayName updates the display name and persists it.
func (w *Workspace) SetDisplayName(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.meta.DisplayName = name
	w.meta.LastActivity = time.Now().UTC()
	return w.persistLocked()
}

// AutoName assigns a derived display name and promotes the workspace to
// the auto-named state. It is a no-op once the workspace has left the
// created state, so a user-assigned name is never overwritten.
func (w *Workspace) AutoName(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.meta.State != StateCreated {
		return nil
	}
	w.meta.DisplayName = name
	w.meta.State = StateAutoNamed
	return w.persistLocked()
}

// SetState transitions the workspace lifecycle state and persists it.
func (w *Workspace) SetState(state State) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.meta.State = state
	return w.persistLocked()
}

// AddFile records an uploaded-file reference and persists it.
func (w *Workspace) AddFile(ref FileRef) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.meta.Files = append(w.meta.Files, ref)
	w.meta.FileCount = len(w.meta.Files)
	w.meta.LastActivity = time.Now().UTC()
	return w.persistLocked()
}

// Files returns the uploaded-file references associated with this chat.
func (w *Workspace) Files() []FileRef {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]FileRef, len(w.meta.Files))
	copy(out, w.meta.Files)
	return out
}

// Stats returns a snapshot of the workspace's bookkeeping fields.
func (w *Workspace) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Stats{
		CreatedAt:    w.meta.CreatedAt,
		LastActivity: w.meta.LastActivity,
		MessageCount: w.meta.MessageCount,
		FileCount:    w.meta.FileCount,
	}
}

// Delete removes the workspace directory and everything in it.
func (w *Workspace) Delete() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("deleting workspace %s: %w", w.meta.ChatID, err)
	}
	return nil
}

// persistLocked writes metadata and history to disk. Must be called with
// mu held. Files are written via temp-and-rename so readers never observe
// a partial write.
func (w *Workspace) persistLocked() error {
	if err := writeJSONAtomic(filepath.Join(w.dir, metadataFile), w.meta); err != nil {
		return fmt.Errorf("persisting metadata for %s: %w", w.meta.ChatID, err)
	}

	turns := w.turns
	if turns == nil {
		turns = []Turn{}
	}
	if err := writeJSONAtomic(filepath.Join(w.dir, historyFile), turns); err != nil {
		return fmt.Errorf("persisting history for %s: %w", w.meta.ChatID, err)
	}
	return nil
}

// writeJSONAtomic marshals v and writes it to path via a temp file rename.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
