// ABOUTME: File-backed catalog over all workspace directories with self-healing.
// ABOUTME: The filesystem scan is the source of truth; the index is a cache.

package workspace

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// indexVersion tags the on-disk index schema. A mismatch triggers a full
// rebuild from the workspace directories.
const indexVersion = "1"

const indexFileName = "index.json"

// SortField selects the ordering for Index.List.
type SortField string

const (
	SortLastActivity SortField = "last_activity"
	SortCreatedAt    SortField = "created_at"
	SortMessageCount SortField = "message_count"
	SortFileCount    SortField = "file_count"
)

// Entry is the cached metadata summary for one workspace.
type Entry struct {
	ChatID       string    `json:"chat_id"`
	DisplayName  string    `json:"display_name"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
	FileCount    int       `json:"file_count"`
}

// ListOptions controls paging, ordering, and filtering for Index.List.
type ListOptions struct {
	Limit       int
	Offset      int
	SortBy      SortField
	Desc        bool
	FilterState State
}

// ConsistencyReport is the result of comparing the index against the
// filesystem.
type ConsistencyReport struct {
	Consistent       bool     `json:"consistent"`
	MissingFromIndex []string `json:"missing_from_index"`
	MissingFromFS    []string `json:"missing_from_fs"`
}

// indexFile is the persisted index.json layout.
type indexFile struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
}

// Index is the in-memory catalog of all workspaces under a base path.
// Mutations rewrite the whole index file under the mutex; this is a
// single-process design.
type Index struct {
	mu       sync.Mutex
	basePath string
	path     string
	entries  map[string]*Entry
	logger   *slog.Logger
}

// NewIndex loads the index file under basePath, rebuilding it from the
// workspace directories when the file is missing, corrupt, or tagged
// with a different schema version.
func NewIndex(basePath string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace base path: %w", err)
	}

	idx := &Index{
		basePath: basePath,
		path:     filepath.Join(basePath, indexFileName),
		entries:  make(map[string]*Entry),
		logger:   logger.With("component", "index"),
	}

	if err := idx.loadOrRebuild(); err != nil {
		return nil, err
	}
	return idx, nil
}

// loadOrRebuild populates entries from the index file, falling back to a
// full filesystem scan. A corrupt index is never surfaced to the caller.
func (idx *Index) loadOrRebuild() error {
	data, err := os.ReadFile(idx.path)
	if err == nil {
		var f indexFile
		if jsonErr := json.Unmarshal(data, &f); jsonErr == nil && f.Version == indexVersion && f.Entries != nil {
			idx.entries = f.Entries
			return nil
		}
		idx.logger.Warn("index file corrupt or version mismatch, rebuilding",
			"path", idx.path)
	}

	return idx.rebuild()
}

// rebuild scans every subdirectory and re-derives entries from each valid
// workspace. Invalid or incomplete subdirectories are skipped silently.
func (idx *Index) rebuild() error {
	idx.entries = make(map[string]*Entry)

	dirEntries, err := os.ReadDir(idx.basePath)
	if err != nil {
		return fmt.Errorf("scanning workspace base path: %w", err)
	}

	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		ws, err := Load(idx.basePath, de.Name())
		if err != nil {
			continue
		}
		idx.entries[ws.ID()] = entryFor(ws)
	}

	idx.logger.Info("index rebuilt", "workspaces", len(idx.entries))
	return idx.persistLocked()
}

// entryFor derives an index entry from a workspace's current state.
func entryFor(ws *Workspace) *Entry {
	stats := ws.Stats()
	return &Entry{
		ChatID:       ws.ID(),
		DisplayName:  ws.DisplayName(),
		State:        ws.State(),
		CreatedAt:    stats.CreatedAt,
		LastActivity: stats.LastActivity,
		MessageCount: stats.MessageCount,
		FileCount:    stats.FileCount,
	}
}

// Add upserts the index entry for a workspace and rewrites the index file.
func (idx *Index) Add(ws *Workspace) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries[ws.ID()] = entryFor(ws)
	return idx.persistLocked()
}

// Update has upsert semantics identical to Add. It exists so call sites
// read naturally after a workspace mutation.
func (idx *Index) Update(ws *Workspace) error {
	return idx.Add(ws)
}

// Remove deletes the entry for a chat ID and rewrites the index file.
// Removing an unknown ID is not an error.
func (idx *Index) Remove(chatID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.entries, chatID)
	return idx.persistLocked()
}

// Get returns the entry for a chat ID, or false if it is not indexed.
func (idx *Index) Get(chatID string) (*Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.entries[chatID]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// Len returns the number of indexed workspaces.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.entries)
}

// List returns a page of entries ordered by the requested field. Ties are
// broken by chat ID ascending so the ordering is a deterministic total
// order.
func (idx *Index) List(opts ListOptions) []*Entry {
	idx.mu.Lock()
	all := make([]*Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		if opts.FilterState != "" && e.State != opts.FilterState {
			continue
		}
		cp := *e
		all = append(all, &cp)
	}
	idx.mu.Unlock()

	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = SortLastActivity
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		var less, eq bool
		switch sortBy {
		case SortCreatedAt:
			less, eq = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		case SortMessageCount:
			less, eq = a.MessageCount < b.MessageCount, a.MessageCount == b.MessageCount
		case SortFileCount:
			less, eq = a.FileCount < b.FileCount, a.FileCount == b.FileCount
		default:
			less, eq = a.LastActivity.Before(b.LastActivity), a.LastActivity.Equal(b.LastActivity)
		}
		if eq {
			return a.ChatID < b.ChatID
		}
		if opts.Desc {
			return !less
		}
		return less
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(all) {
			return []*Entry{}
		}
		all = all[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all
}

// Search returns entries whose display name contains the query,
// case-insensitively, ordered by last activity descending.
func (idx *Index) Search(query string) []*Entry {
	q := strings.ToLower(query)

	idx.mu.Lock()
	matches := make([]*Entry, 0)
	for _, e := range idx.entries {
		if strings.Contains(strings.ToLower(e.DisplayName), q) {
			cp := *e
			matches = append(matches, &cp)
		}
	}
	idx.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.LastActivity.Equal(b.LastActivity) {
			return a.ChatID < b.ChatID
		}
		return a.LastActivity.After(b.LastActivity)
	})
	return matches
}

// VerifyConsistency computes the set difference between filesystem
// workspaces and indexed entries.
func (idx *Index) VerifyConsistency() (*ConsistencyReport, error) {
	onDisk, err := idx.scanChatIDs()
	if err != nil {
		return nil, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	report := &ConsistencyReport{
		MissingFromIndex: []string{},
		MissingFromFS:    []string{},
	}
	for id := range onDisk {
		if _, ok := idx.entries[id]; !ok {
			report.MissingFromIndex = append(report.MissingFromIndex, id)
		}
	}
	for id := range idx.entries {
		if !onDisk[id] {
			report.MissingFromFS = append(report.MissingFromFS, id)
		}
	}
	sort.Strings(report.MissingFromIndex)
	sort.Strings(report.MissingFromFS)
	report.Consistent = len(report.MissingFromIndex) == 0 && len(report.MissingFromFS) == 0
	return report, nil
}

// Repair reconciles the index with the filesystem: workspaces missing
// from the index are loaded and re-added, entries whose directory is gone
// are removed. Individual load failures are logged and skipped.
func (idx *Index) Repair() error {
	report, err := idx.VerifyConsistency()
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, id := range report.MissingFromIndex {
		ws, err := Load(idx.basePath, id)
		if err != nil {
			idx.logger.Warn("repair: skipping workspace", "chat_id", id, "error", err)
			continue
		}
		idx.entries[id] = entryFor(ws)
		idx.logger.Info("repair: re-added workspace", "chat_id", id)
	}

	for _, id := range report.MissingFromFS {
		delete(idx.entries, id)
		idx.logger.Info("repair: removed stale entry", "chat_id", id)
	}

	return idx.persistLocked()
}

// scanChatIDs lists every valid workspace directory under the base path.
func (idx *Index) scanChatIDs() (map[string]bool, error) {
	dirEntries, err := os.ReadDir(idx.basePath)
	if err != nil {
		return nil, fmt.Errorf("scanning workspace base path: %w", err)
	}

	ids := make(map[string]bool)
	for _, de := range dirEntries {
		if de.IsDir() && Exists(idx.basePath, de.Name()) {
			ids[de.Name()] = true
		}
	}
	return ids, nil
}

// persistLocked rewrites the whole index file. Must be called with mu held.
func (idx *Index) persistLocked() error {
	f := indexFile{Version: indexVersion, Entries: idx.entries}
	if err := writeJSONAtomic(idx.path, f); err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}
	return nil
}
